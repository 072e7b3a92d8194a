// Package model defines the core data structures used throughout
// crate-downloader.
//
// # Crate
//
// Crate is one (name, version) pair read from the registry index:
//
//	c, err := model.ParseIndexLine([]byte(`{"name":"serde","vers":"1.0.0"}`))
//	fmt.Println(c.ArchivePath("/mirror", "crate")) // /mirror/serde-1.0.0.crate
//	fmt.Println(c.DownloadURL(baseURL))            // {base}/serde/1.0.0/download
//
// # Paths
//
// ArchivePath is a pure function of the crate and doubles as the completion
// marker: if the file exists, the crate has been mirrored. Downloads in flight
// are written to TempPath, a hidden sibling, and renamed into place once complete.
package model
