package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"contract-guard/types"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// MinTextLength 抽取结果的最小长度
const MinTextLength = 50

// SupportedExtensions 支持的文件类型
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B-\x0C\x0E-\x1F\x7F]`)

// ObjectFetcher 对象存储读取
type ObjectFetcher interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Extractor 从上传文件或文件引用中抽取合同正文
type Extractor struct {
	parser  parser.Parser
	loader  document.Loader
	objects ObjectFetcher
	root    string
}

// New objects 可为 nil，此时不支持 s3:// 引用
func New(ctx context.Context, objects ObjectFetcher) (*Extractor, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf":  pdfParser,
			".docx": &DocxParser{},
			".txt":  &parser.TextParser{},
		},
		FallbackParser: &parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("create ext parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("create file loader: %w", err)
	}
	return &Extractor{parser: extParser, loader: loader, objects: objects}, nil
}

// WithLocalRoot 允许读取 root 目录下的本地文件引用，未设置时本地引用一律拒绝
func (e *Extractor) WithLocalRoot(root string) (*Extractor, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve file root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve file root: %w", err)
	}
	e.root = real
	return e, nil
}

// Supported 文件扩展名是否支持
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// ExtractReader 解析上传的文件内容
func (e *Extractor) ExtractReader(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !Supported(filename) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, filepath.Ext(filename))
	}
	docs, err := e.parser.Parse(ctx, r, parser.WithURI(strings.ToLower(filename)))
	if err != nil {
		return "", wrapExtraction(err)
	}
	return joinDocs(docs)
}

// ExtractRef 解析文件引用：s3://bucket/key、file:///path 或本地路径
func (e *Extractor) ExtractRef(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"), strings.HasPrefix(ref, "minio://"):
		return e.extractObject(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return "", fmt.Errorf("%w: unsupported file reference %q", types.ErrInvalidInput, ref)
	}

	p := strings.TrimPrefix(ref, "file://")
	if !Supported(p) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, filepath.Ext(p))
	}
	p, err := e.resolveLocal(p)
	if err != nil {
		return "", err
	}
	docs, err := e.loader.Load(ctx, document.Source{URI: p})
	if err != nil {
		return "", wrapExtraction(err)
	}
	return joinDocs(docs)
}

// resolveLocal 相对路径基于 root 解析，解析符号链接后必须仍位于 root 之下
func (e *Extractor) resolveLocal(p string) (string, error) {
	if e.root == "" {
		return "", fmt.Errorf("%w: local file references are disabled", types.ErrInvalidInput)
	}
	p = filepath.Clean(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.root, p)
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		p = real
	}
	rel, err := filepath.Rel(e.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: file reference outside the allowed directory", types.ErrInvalidInput)
	}
	return p, nil
}

func (e *Extractor) extractObject(ctx context.Context, ref string) (string, error) {
	if e.objects == nil {
		return "", fmt.Errorf("%w: object storage is not configured", types.ErrInvalidInput)
	}
	rest := ref[strings.Index(ref, "://")+3:]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", fmt.Errorf("%w: malformed object reference %q", types.ErrInvalidInput, ref)
	}
	if !Supported(key) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, path.Ext(key))
	}
	rc, err := e.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return "", wrapExtraction(err)
	}
	defer rc.Close()
	return e.ExtractReader(ctx, path.Base(key), rc)
}

func wrapExtraction(err error) error {
	if errors.Is(err, types.ErrExtraction) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrExtraction, err)
}

func joinDocs(docs []*schema.Document) (string, error) {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if c := Sanitize(doc.Content); c != "" {
			parts = append(parts, c)
		}
	}
	text := strings.Join(parts, "\n")
	if utf8.RuneCountInString(text) < MinTextLength {
		return "", fmt.Errorf("%w: extracted text shorter than %d characters", types.ErrExtraction, MinTextLength)
	}
	return text, nil
}

// Sanitize 去除控制字符和无效 UTF-8，保留换行与制表符
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = controlChars.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
