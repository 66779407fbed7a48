// Package nvram is a log-structured, wear-leveling configuration store for
// raw NOR flash.
//
// Settings live in up to three regions of the flash device: User (mutable),
// Factory (calibration data written at manufacturing time) and the optional
// Factory-RW (machine specific provisioning data). Each region is a ring of
// erase-block sized segments. Records are only ever appended; an update
// writes a new record before the previous one is retired, and a full
// segment is compacted into the next one of the ring. After a power cut the
// store recovers at Open, dropping torn or corrupt records.
//
// # Quick Start
//
//	dev, err := storage.OpenFile("flash.img", 1<<20, 4096)
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	table, err := partition.LoadFile("partitions.yaml")
//	if err != nil {
//	    return err
//	}
//
//	store, err := nvram.Open(ctx, dev, table)
//	if err != nil {
//	    return err
//	}
//
//	if err := store.Set(ctx, "bt.name", []byte("Speaker")); err != nil {
//	    return err
//	}
//
//	buf := make([]byte, 64)
//	n, err := store.Get(ctx, "bt.name", buf)
//
// # Read and Write Targets
//
// Get looks in User, then Factory-RW, then Factory. Set always writes User.
// GetFactory skips User; SetFactory writes Factory-RW when the device has
// one and Factory otherwise. Writing an empty value deletes a key.
//
// # Concurrency
//
// Every region has its own lock that is held for a whole operation. The
// context passed to an operation bounds the wait for that lock only; media
// I/O always runs to completion.
//
// # Backups
//
// Store.Backup copies the raw region images into a backup.Archive, which can
// sit on a local directory, S3 or MinIO. Store.Restore programs them back.
package nvram
