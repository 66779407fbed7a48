// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    return err
//	}
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "device-42/")
//	archive := backup.NewArchive(store)
//
// # Features
//
//   - Uploads through the transfer manager with CRC32C checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-device isolation
package s3
