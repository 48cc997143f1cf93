package urlproc

import (
	"path"
	"strings"
)

// skippedExtensions lists file extensions of resources the crawler never
// downloads. The set is fixed; matching is case-insensitive.
var skippedExtensions = map[string]struct{}{
	// images
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".webp": {},
	".svg": {}, ".ico": {}, ".tif": {}, ".tiff": {}, ".avif": {}, ".heic": {},
	// audio and video
	".mp3": {}, ".mp4": {}, ".m4a": {}, ".m4v": {}, ".wav": {}, ".ogg": {},
	".ogv": {}, ".webm": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".flv": {},
	".wmv": {}, ".flac": {},
	// documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {},
	".pptx": {}, ".odt": {}, ".ods": {}, ".odp": {}, ".rtf": {}, ".epub": {},
	// archives and binaries
	".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".tgz": {},
	".bz2": {}, ".xz": {}, ".exe": {}, ".msi": {}, ".dmg": {}, ".iso": {},
	".apk": {}, ".deb": {}, ".rpm": {}, ".bin": {},
	// fonts and assets
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".css": {}, ".js": {}, ".map": {},
}

// IsCrawlable reports whether raw is an http(s) URL that does not point at
// a binary, media, document or archive resource.
// Strings that fail Normalize are not crawlable.
func IsCrawlable(raw string) bool {
	c, err := Normalize(raw)
	if err != nil {
		return false
	}
	return c.Crawlable()
}

// Crawlable is the CanonicalURL form of IsCrawlable.
func (c CanonicalURL) Crawlable() bool {
	if c.scheme != "http" && c.scheme != "https" {
		return false
	}
	ext := strings.ToLower(path.Ext(c.path))
	if ext == "" {
		return true
	}
	_, skip := skippedExtensions[ext]
	return !skip
}
