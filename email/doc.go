package email

// email composes messages and hands them to a transport. A Builder produces
// an immutable Config holding the sender identity, content type and dispatch
// mode. Each outgoing message starts as a Draft obtained from that Config; on
// Send the Draft is validated, turned into a Message and either delivered
// inline or submitted to a worker pool.
//
// Sending over SMTP, including negotiating TLS and authentication, lives in
// SMTPTransport. The package does not care what the message says.
