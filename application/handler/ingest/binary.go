package ingest

import (
	"path/filepath"
	"strings"
)

// binaryExtensions are never read, chunked, or embedded: images, video,
// audio, archives, compiled artifacts, office documents, fonts, database
// files, wasm, and lock files.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".svg": {}, ".webp": {}, ".tiff": {},
	".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".mkv": {},
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {}, ".bz2": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {},
	".class": {}, ".pyc": {}, ".o": {}, ".a": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	".db": {}, ".sqlite": {}, ".sqlite3": {},
	".wasm": {}, ".lock": {},
}

// IsBinaryPath reports whether the path carries a blocklisted extension.
func IsBinaryPath(path string) bool {
	_, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
