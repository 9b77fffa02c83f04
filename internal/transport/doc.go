// Package transport issues requests against the remote build service and
// classifies the responses.
//
// Every request targets http://{host}:{port}/{mount}/{relative path}. Responses
// are classified by status code first and content type second:
//
//   - 201 Created yields an empty result.
//   - Any other 2xx is decoded by Content-Type: application/json is kept as
//     raw JSON, text/plain as a string and everything else as bytes.
//   - Any other status fails with *RemoteServiceError.
//
// The transport never retries. Proxy routing is resolved once when the
// Transport is built and passed in explicitly through Options.
package transport
