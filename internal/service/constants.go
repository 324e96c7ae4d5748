package service

import "github.com/audiolibrelab/recbridge/internal/config"

// Constants are the read-only directory paths exposed to the shell.
// MainBundlePath and LibraryDirectoryPath have no equivalent on this host
// and are always empty.
type Constants struct {
	DocumentDirectoryPath  string `json:"DocumentDirectoryPath"`
	PicturesDirectoryPath  string `json:"PicturesDirectoryPath"`
	MainBundlePath         string `json:"MainBundlePath"`
	CachesDirectoryPath    string `json:"CachesDirectoryPath"`
	LibraryDirectoryPath   string `json:"LibraryDirectoryPath"`
	MusicDirectoryPath     string `json:"MusicDirectoryPath"`
	DownloadsDirectoryPath string `json:"DownloadsDirectoryPath"`
}

// NewConstants resolves the constants from the configured directories
func NewConstants(dirs config.DirectoriesConfig) Constants {
	return Constants{
		DocumentDirectoryPath:  dirs.Documents,
		PicturesDirectoryPath:  dirs.Pictures,
		CachesDirectoryPath:    dirs.Caches,
		MusicDirectoryPath:     dirs.Music,
		DownloadsDirectoryPath: dirs.Downloads,
	}
}
