// Package http serves a swiftpath.Backend over HTTP.
//
// The layout follows Swift: "/" lists containers, "/{container}" addresses a
// container and "/{container}/{key}" an object. Listings are JSON; object
// bodies stream as-is with their ETag, Content-Type and Last-Modified headers.
//
//	GET    /                     list containers (marker, limit)
//	GET    /{container}          list objects (prefix, delimiter, marker, limit)
//	HEAD   /{container}          object count and bytes used
//	PUT    /{container}          create container
//	DELETE /{container}          delete an empty container
//	GET    /{container}/{key}    read object
//	HEAD   /{container}/{key}    stat object
//	PUT    /{container}/{key}    write object, or copy with X-Copy-From, or
//	                             link with X-Symlink-Target
//	POST   /{container}/{key}    touch object
//	DELETE /{container}/{key}    delete object
//
// # Authentication
//
// Requests are presigned URLs, either Stowry native (X-Stowry-*) or AWS
// Signature V4 (X-Amz-*). Reads and writes take separate verifiers; a nil
// verifier leaves that side public:
//
//	store := keybackend.NewMapSecretStore(keys)
//	verifier := http.NewSignatureVerifier(http.AWSConfig{Region: "us-east-1", Service: "s3"}, store)
//	h := http.NewHandler(&http.HandlerConfig{WriteVerifier: verifier}, backend)
//	_ = nethttp.ListenAndServe(":5708", h.Router())
//
// Errors are JSON ErrorResponse bodies whose code maps back to the swiftpath
// sentinel through CodeError.
package http
