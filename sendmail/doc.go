package sendmail

// sendmail runs a single CLI invocation: it composes one message per
// recipient from the user's config and flags, dispatches them, and tears
// down the journal and worker pool once every message has been handed off.
