package workerpool

// workerpool runs submitted tasks on a bounded set of goroutines. It is the
// pool the email package hands asynchronous sends to. Creating the pool and
// waiting for it to drain are up to the caller.
