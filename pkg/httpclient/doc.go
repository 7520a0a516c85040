// Package httpclient builds the HTTP client used for release artifact
// downloads: automatic retry with exponential backoff and jitter,
// User-Agent injection, structured request logging, TLS 1.2 minimum,
// and connection pooling.
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("https://github.com/...")
//
// Transient failures are retried: 5xx, 408, 429 (honoring Retry-After),
// and network-level errors such as refused or reset connections. Only
// GET, HEAD, and OPTIONS requests are retried; other methods execute
// exactly once.
package httpclient
