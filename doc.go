// Package swiftpath presents an object store as a tree of paths, in the
// manner of a filesystem path library, over OpenStack Swift and compatible
// backends.
//
// Paths have the form /container/key/with/segments. The first segment names a
// container and the rest form the object key. Directories do not exist in the
// store: a path is a directory when it is a container, when some object key
// starts with its key plus "/", or when a zero-byte marker object created by
// Mkdir sits below it.
//
// # Key Components
//
//   - PurePath: immutable path algebra with no backend access
//   - Path: a PurePath bound to a Backend, with existence checks, listing,
//     reads, writes, rename and symlinks
//   - Backend: the narrow storage capability Path is built on, implemented by
//     the packages under backend/
//   - PartialRenameError: reported when a rename copied everything but could
//     not delete every source
//
// # Rename Is Not Atomic
//
// Rename and Replace copy on the server and delete the source afterwards. If
// a delete fails the caller gets a *PartialRenameError naming the leftover
// sources, and running Replace again finishes the move.
//
// # Example Usage
//
//	b := memory.New()
//	p, err := swiftpath.New(b, "/bucket/logs/app.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := p.Parent().Mkdir(ctx, swiftpath.MkdirOptions{Parents: true}); err != nil {
//	    log.Fatal(err)
//	}
//	err = p.WriteText(ctx, "started\n")
//
//	for entry, err := range p.Parent().ScanDir(ctx) {
//	    ...
//	}
//
// See the connect package for a process-wide default backend built from the
// environment, and the http package for a REST gateway over a path tree.
package swiftpath
