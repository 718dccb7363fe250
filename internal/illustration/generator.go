// Package illustration requests chapter illustrations from the image service
// and stores them as PNG files named by sequence number.
package illustration

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/abdulachik/inkbloom/internal/chapter"
	"github.com/abdulachik/inkbloom/internal/remote"
)

const (
	imageService    = "openai image"
	downloadService = "image download"

	// DefaultModel is the image model used when none is configured.
	DefaultModel = "dall-e-3"

	// MediaType is the media type of every stored illustration.
	MediaType = "image/png"

	maxImageBytes = 32 << 20
)

// ErrNotFound is returned by Load when no illustration exists for a sequence number.
var ErrNotFound = errors.New("illustration not found")

// Illustration is one stored chapter image.
type Illustration struct {
	Sequence  int
	Data      []byte
	MediaType string
	Path      string
}

// FileName is the package file name of the illustration.
func (il *Illustration) FileName() string {
	return chapter.IllustrationFile(il.Sequence)
}

// Config holds configuration for a Generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	OutputDir  string
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// Generator creates illustrations through the OpenAI Images API.
type Generator struct {
	client     openai.Client
	httpClient *http.Client
	model      string
	outputDir  string
	limiter    *rate.Limiter
}

// NewGenerator creates a Generator. The SDK's own retries are disabled.
func NewGenerator(cfg Config) *Generator {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Generator{
		client:     openai.NewClient(opts...),
		httpClient: httpClient,
		model:      model,
		outputDir:  cfg.OutputDir,
		limiter:    cfg.Limiter,
	}
}

// Path returns where the illustration with the given sequence number is stored.
func (g *Generator) Path(seq int) string {
	return filepath.Join(g.outputDir, chapter.IllustrationFile(seq))
}

// Generate requests one 1024x1024 image for prompt and stores it as
// chapter_{seq}_illustration.png. Every returned remote error carries the prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, seq int) (*Illustration, error) {
	il, err := g.generate(ctx, prompt, seq)
	if err != nil {
		return nil, remote.WithPrompt(err, prompt)
	}
	return il, nil
}

func (g *Generator) generate(ctx context.Context, prompt string, seq int) (*Illustration, error) {
	if err := remote.Wait(ctx, g.limiter); err != nil {
		return nil, err
	}

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return nil, remote.FromOpenAI(imageService, err)
	}
	if len(resp.Data) == 0 {
		return nil, remote.MalformedError(imageService, errors.New("no image in response"))
	}

	raw, err := g.fetch(ctx, resp.Data[0])
	if err != nil {
		return nil, err
	}

	data, err := toPNG(raw)
	if err != nil {
		return nil, remote.MalformedError(imageService, err)
	}

	path := g.Path(seq)
	if err := writeFile(path, data); err != nil {
		return nil, fmt.Errorf("save illustration: %w", err)
	}

	slog.Info("illustration generated", "sequence", seq, "path", path, "bytes", len(data))
	return &Illustration{Sequence: seq, Data: data, MediaType: MediaType, Path: path}, nil
}

// fetch returns the image bytes, either inline or downloaded from the URL.
func (g *Generator) fetch(ctx context.Context, img openai.Image) ([]byte, error) {
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, remote.MalformedError(imageService, fmt.Errorf("decode b64_json: %w", err))
		}
		return data, nil
	}
	if img.URL == "" {
		return nil, remote.MalformedError(imageService, errors.New("image has neither url nor b64_json"))
	}
	return g.download(ctx, img.URL)
}

func (g *Generator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, remote.MalformedError(downloadService, fmt.Errorf("create request: %w", err))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, remote.TransportError(downloadService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remote.StatusError(downloadService, resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, remote.TransportError(downloadService, fmt.Errorf("read image: %w", err))
	}
	return data, nil
}

// Load reads a previously generated illustration without calling the service.
func (g *Generator) Load(seq int) (*Illustration, error) {
	path := g.Path(seq)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read illustration: %w", err)
	}
	return &Illustration{Sequence: seq, Data: data, MediaType: MediaType, Path: path}, nil
}

// toPNG decodes any supported image format and re-encodes it as PNG.
func toPNG(raw []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "png" {
		return raw, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFile writes data next to path and renames it into place.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".illustration-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename illustration: %w", err)
	}
	return nil
}
