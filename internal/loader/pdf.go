package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"docpipe/internal/models"
)

const (
	// PDFModeSingle joins all pages into one RawDocument.
	PDFModeSingle = "single"
	// PDFModePage emits one RawDocument per page.
	PDFModePage = "page"

	// Caption inline formats.
	ImageFormatText     = "text"
	ImageFormatMarkdown = "markdown"
	ImageFormatHTML     = "html"

	defaultPagesDelimiter = "\n\f"
)

// ImageCaptioner turns an embedded image into a short text description. It is
// an injected external model call, not implemented here.
type ImageCaptioner interface {
	Caption(ctx context.Context, mimeType string, data []byte) (string, error)
}

// PDFOptions configures the page-aware PDF loader.
type PDFOptions struct {
	Mode           string // "single" (default) or "page"
	PagesDelimiter string // page join in single mode, default "\n\f"
	Password       string // decryption password for protected files
	ExtractImages  bool
	Captioner      ImageCaptioner
	ImageFormat    string // "text" (default), "markdown" or "html"
}

// PDFLoader extracts page text, optionally augmented with captions of
// embedded images produced by an external captioning model.
type PDFLoader struct {
	Mode           string
	PagesDelimiter string
	Password       string
	ExtractImages  bool
	Captioner      ImageCaptioner
	ImageFormat    string
}

func (l *PDFLoader) Load(path string) ([]models.RawDocument, error) {
	if l.ExtractImages && l.Captioner == nil {
		return nil, &models.ConfigurationError{Field: "pdf.captioner", Reason: "image extraction requires a configured captioning model"}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var reader *pdf.Reader
	if l.Password != "" {
		reader, err = pdf.NewReaderEncrypted(f, stat.Size(), func() string { return l.Password })
	} else {
		reader, err = pdf.NewReader(f, stat.Size())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text of page %d in %s: %w", i, path, err)
		}
		if l.ExtractImages {
			captions, err := l.captionPageImages(context.Background(), page)
			if err != nil {
				return nil, fmt.Errorf("failed to caption images of page %d in %s: %w", i, path, err)
			}
			if captions != "" {
				text = text + "\n" + captions
			}
		}
		pages = append(pages, text)
	}

	if l.mode() == PDFModePage {
		docs := make([]models.RawDocument, 0, len(pages))
		for i, text := range pages {
			docs = append(docs, models.RawDocument{
				Text: text,
				Metadata: map[string]string{
					models.MetaSource: path,
					models.MetaPage:   strconv.Itoa(i + 1),
				},
			})
		}
		return docs, nil
	}

	delim := l.PagesDelimiter
	if delim == "" {
		delim = defaultPagesDelimiter
	}
	return []models.RawDocument{{
		Text:     strings.Join(pages, delim),
		Metadata: map[string]string{models.MetaSource: path},
	}}, nil
}

func (l *PDFLoader) mode() string {
	if l.Mode == "" {
		return PDFModeSingle
	}
	return l.Mode
}

// captionPageImages decodes the page's image XObjects where the stream filter
// allows it and asks the captioner to describe each one. Images this library
// cannot decode (e.g. DCTDecode streams) are skipped with a warning.
func (l *PDFLoader) captionPageImages(ctx context.Context, page pdf.Page) (string, error) {
	xobjects := page.Resources().Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return "", nil
	}
	var captions []string
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Kind() != pdf.Stream || obj.Key("Subtype").Name() != "Image" {
			continue
		}
		data, mime, ok := decodeImageStream(obj)
		if !ok {
			log.Warn().Str("image", name).Msg("Skipping image with unsupported encoding")
			continue
		}
		caption, err := l.Captioner.Caption(ctx, mime, data)
		if err != nil {
			return "", &models.ExternalServiceError{Service: "image captioning", Err: err}
		}
		captions = append(captions, l.formatCaption(caption))
	}
	return strings.Join(captions, "\n"), nil
}

func (l *PDFLoader) formatCaption(caption string) string {
	switch l.ImageFormat {
	case ImageFormatMarkdown:
		return fmt.Sprintf("![%s](#)", caption)
	case ImageFormatHTML:
		return fmt.Sprintf("<img alt=%q />", caption)
	default:
		return caption
	}
}

// decodeImageStream re-encodes a flate-compressed grayscale or RGB image
// XObject as PNG. The underlying reader panics on filters it cannot apply, so
// the whole decode is guarded.
func decodeImageStream(obj pdf.Value) (data []byte, mime string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			data, mime, ok = nil, "", false
		}
	}()

	if obj.Key("Filter").Name() != "FlateDecode" {
		return nil, "", false
	}
	if obj.Key("BitsPerComponent").Int64() != 8 {
		return nil, "", false
	}
	width := int(obj.Key("Width").Int64())
	height := int(obj.Key("Height").Int64())
	if width <= 0 || height <= 0 {
		return nil, "", false
	}

	r := obj.Reader()
	defer r.Close()
	samples, err := io.ReadAll(r)
	if err != nil {
		return nil, "", false
	}

	var img image.Image
	switch obj.Key("ColorSpace").Name() {
	case "DeviceGray":
		if len(samples) < width*height {
			return nil, "", false
		}
		gray := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			copy(gray.Pix[y*gray.Stride:], samples[y*width:(y+1)*width])
		}
		img = gray
	case "DeviceRGB":
		if len(samples) < width*height*3 {
			return nil, "", false
		}
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			rgba.Pix[i*4+0] = samples[i*3+0]
			rgba.Pix[i*4+1] = samples[i*3+1]
			rgba.Pix[i*4+2] = samples[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		img = rgba
	default:
		return nil, "", false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", false
	}
	return buf.Bytes(), "image/png", true
}
