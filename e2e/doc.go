package e2e

// e2e contains integration tests that run the application from a config
// file on disk through to an in-process SMTP relay, along with the utility
// code required to set up those dependencies. Dependencies that unit tests
// also use live in smtptest instead.
