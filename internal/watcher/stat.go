package watcher

import "os"

func fsStat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
