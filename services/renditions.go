package services

import (
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for image.Decode
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"glowworm/types"

	"golang.org/x/image/draw"
)

// RenditionService interface defines methods for library scanning and
// display-size rendition generation
type RenditionService interface {
	ScanImages(rootPath string) ([]types.ImageFile, error)
	RenderSizes(rootPath, relativePath string, sizes []string) error
	ValidateFilePath(path string) error
	GetContentType(filePath string) string
}

// renditionService implements the RenditionService interface
type renditionService struct {
	cacheDir string
}

// NewRenditionService creates a rendition service writing into cacheDir
func NewRenditionService(cacheDir string) RenditionService {
	return &renditionService{cacheDir: cacheDir}
}

// imageExtensions maps supported file extensions to format names
var imageExtensions = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
}

// ScanImages recursively scans a directory for library images (JPEG and
// PNG), probing each file for its pixel dimensions
func (rs *renditionService) ScanImages(rootPath string) ([]types.ImageFile, error) {
	var files []types.ImageFile

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil // Continue walking, don't fail entire scan
		}
		if info.IsDir() {
			// Renditions live under the cache dir; never rescan them
			if rs.cacheDir != "" && path == rs.cacheDir {
				return filepath.SkipDir
			}
			return nil
		}

		format, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}

		relativePath, err := filepath.Rel(rootPath, path)
		if err != nil {
			relativePath = path // fallback to absolute path
		}

		imageFile := types.ImageFile{
			Filename: info.Name(),
			Path:     filepath.ToSlash(relativePath),
			Size:     info.Size(),
			Format:   format,
		}
		if width, height, err := probeDimensions(path); err == nil {
			imageFile.Width = width
			imageFile.Height = height
		} else {
			log.Printf("Warning: Could not read image header of %s: %v", path, err)
		}

		files = append(files, imageFile)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// RenderSizes renders one library image into every requested display
// size under the cache directory, preserving aspect ratio (fit inside)
func (rs *renditionService) RenderSizes(rootPath, relativePath string, sizes []string) error {
	srcPath := filepath.Join(rootPath, filepath.FromSlash(relativePath))

	file, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", relativePath, err)
	}
	src, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("failed to decode image %s: %w", relativePath, err)
	}

	for _, size := range sizes {
		width, height, err := ParseDisplaySize(size)
		if err != nil {
			return err
		}

		outPath := rs.renditionPath(relativePath, size)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("failed to create rendition directory: %w", err)
		}

		scaled := fitInside(src, width, height)
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create rendition %s: %w", outPath, err)
		}
		err = jpeg.Encode(out, scaled, &jpeg.Options{Quality: 90})
		out.Close()
		if err != nil {
			return fmt.Errorf("failed to encode rendition %s: %w", outPath, err)
		}
	}

	return nil
}

// renditionPath places each rendition under cacheDir/<size>/ mirroring
// the library layout, always as JPEG
func (rs *renditionService) renditionPath(relativePath, size string) string {
	rel := filepath.FromSlash(relativePath)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".jpg"
	return filepath.Join(rs.cacheDir, size, rel)
}

// fitInside scales src to fit within maxWidth x maxHeight without
// changing its aspect ratio. Images already small enough pass through.
func fitInside(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= maxWidth && srcH <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(srcW)
	if s := float64(maxHeight) / float64(srcH); s < scale {
		scale = s
	}
	dstW := int(float64(srcW) * scale)
	dstH := int(float64(srcH) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// ParseDisplaySize parses a "WIDTHxHEIGHT" resolution string
func ParseDisplaySize(size string) (width, height int, err error) {
	parts := strings.SplitN(strings.ToLower(size), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid display size %q, expected WIDTHxHEIGHT", size)
	}
	width, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid display size %q, expected WIDTHxHEIGHT", size)
	}
	height, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid display size %q, expected WIDTHxHEIGHT", size)
	}
	return width, height, nil
}

// probeDimensions reads just the image header for width and height
func probeDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// GetContentType returns the appropriate MIME type for a library image
func (rs *renditionService) GetContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// ValidateFilePath rejects paths that could escape the library root
func (rs *renditionService) ValidateFilePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path must not contain '..'")
	}
	if filepath.IsAbs(filepath.FromSlash(path)) {
		return fmt.Errorf("path must be relative")
	}
	return nil
}
