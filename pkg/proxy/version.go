package proxy

// Version is the client version reported in Core.Hello.
const Version = "0.3.0"
