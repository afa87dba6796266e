package address

// address checks whether strings look like deliverable email addresses. The
// check is purely syntactic: no DNS, MX or directory lookups are performed,
// so it is cheap enough to run every time an address is set.
