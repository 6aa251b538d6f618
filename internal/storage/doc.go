// Package storage provides the format backends that turn disk lifecycle
// requests into on-disk state.
//
// Each supported Format has one Backend:
//   - vhd: ImageToolBackend, dynamic VHD images created and inspected with qemu-img
//   - raw: SparseFileBackend, sparse flat files attached through loop devices
//
// Format Selection:
//
// A disk's format is chosen when it is created and stored in its metadata
// under the reserved sm_config key "type" (FormatKey). Callers read it back
// on every operation and ask the Dispatcher for the matching backend. A
// missing or unknown tag yields a *FormatError and the disk cannot be
// operated on until the tag is repaired.
//
// Size Validation:
//
// Backends validate requested sizes before touching the disk. Out of range
// sizes yield a *SizeRangeError carrying the value and both bounds:
//   - vhd: [0, 9223372036854774784]
//   - raw: [0, math.MaxInt64]
//
// Example usage:
//
//	tool := qemuimg.NewExec("", log)
//	dispatcher := storage.NewDispatcher(tool, storage.NewLosetup("", log), log)
//
//	format, err := storage.FormatFromConfig(disk.SMConfig)
//	if err != nil {
//	    return err
//	}
//	backend, err := dispatcher.For(format)
//	if err != nil {
//	    return err
//	}
//	if err := backend.Create(ctx, "/srv/sr1/data", 8<<30); err != nil {
//	    return err
//	}
package storage
