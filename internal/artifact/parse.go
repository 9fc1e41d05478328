package artifact

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oshokin/binwrap/internal/domain/wrap"
	"github.com/oshokin/binwrap/internal/platform"
)

// ErrMalformedArtifact is returned when a file is not a launcher this package can read.
var ErrMalformedArtifact = errors.New("malformed launcher artifact")

// Names of the declarations the template emits.
const (
	identWrapper           = "wrapperName"
	identWrapID            = "wrapID"
	identChecksum          = "checksum"
	identChecksumAlgorithm = "checksumAlgorithm"
	identFileName          = "fileName"
	identTargetPlatform    = "targetPlatform"
	identCreatedAt         = "creationTimeUTC"
	identWrappedAt         = "wrapTimeUTC"
	identPropagateExitCode = "propagateExitCode"
	identContentAddressed  = "contentAddressed"
	identEnvOverlay        = "envOverlay"
	identPayload           = "payload"
)

// ParseFile reads and parses the launcher at path.
func ParseFile(path string) (*wrap.Record, error) {
	src, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	rec, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return rec, nil
}

// Parse recovers the record from launcher source and validates it.
func Parse(src []byte) (*wrap.Record, error) {
	file, err := parser.ParseFile(token.NewFileSet(), "", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
	}

	values := topLevelValues(file)
	reader := valueReader{values: values}

	rec := &wrap.Record{
		Wrapper:           reader.str(identWrapper),
		WrapID:            reader.str(identWrapID),
		Checksum:          reader.str(identChecksum),
		ChecksumAlgorithm: reader.str(identChecksumAlgorithm),
		FileName:          reader.str(identFileName),
		TargetPlatform:    platform.Platform(reader.str(identTargetPlatform)),
		CreatedAt:         reader.time(identCreatedAt),
		WrappedAt:         reader.time(identWrappedAt),
		PropagateExitCode: reader.boolean(identPropagateExitCode),
		EnvOverlay:        reader.stringMap(identEnvOverlay),
		EncodedPayload:    reader.str(identPayload),
		CacheLayout:       wrap.LayoutFlat,
	}

	if reader.boolean(identContentAddressed) {
		rec.CacheLayout = wrap.LayoutContent
	}

	if reader.err != nil {
		return nil, reader.err
	}

	if err = rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
	}

	return rec, nil
}

// topLevelValues maps every single-valued top-level const/var name to its expression.
func topLevelValues(file *ast.File) map[string]ast.Expr {
	values := make(map[string]ast.Expr)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || (gen.Tok != token.CONST && gen.Tok != token.VAR) {
			continue
		}

		for _, spec := range gen.Specs {
			valueSpec, ok := spec.(*ast.ValueSpec)
			if !ok || len(valueSpec.Names) != len(valueSpec.Values) {
				continue
			}

			for i, name := range valueSpec.Names {
				values[name.Name] = valueSpec.Values[i]
			}
		}
	}

	return values
}

// valueReader extracts typed literals and keeps the first failure.
type valueReader struct {
	values map[string]ast.Expr
	err    error
}

func (r *valueReader) fail(name, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s is missing or not a %s", ErrMalformedArtifact, name, want)
	}
}

func (r *valueReader) str(name string) string {
	value, ok := stringLiteral(r.values[name])
	if !ok {
		r.fail(name, "string literal")
	}

	return value
}

func (r *valueReader) boolean(name string) bool {
	ident, ok := r.values[name].(*ast.Ident)
	if !ok || (ident.Name != "true" && ident.Name != "false") {
		r.fail(name, "boolean literal")
		return false
	}

	return ident.Name == "true"
}

func (r *valueReader) time(name string) time.Time {
	raw := r.str(name)
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(TimeLayout, raw)
	if err != nil {
		r.fail(name, "RFC 3339 timestamp")
		return time.Time{}
	}

	return parsed.UTC()
}

func (r *valueReader) stringMap(name string) map[string]string {
	literal, ok := r.values[name].(*ast.CompositeLit)
	if !ok {
		r.fail(name, "map literal")
		return nil
	}

	result := make(map[string]string, len(literal.Elts))

	for _, element := range literal.Elts {
		pair, ok := element.(*ast.KeyValueExpr)
		if !ok {
			r.fail(name, "map of string literals")
			return nil
		}

		key, keyOK := stringLiteral(pair.Key)
		value, valueOK := stringLiteral(pair.Value)

		if !keyOK || !valueOK {
			r.fail(name, "map of string literals")
			return nil
		}

		result[key] = value
	}

	return result
}

func stringLiteral(expr ast.Expr) (string, bool) {
	literal, ok := expr.(*ast.BasicLit)
	if !ok || literal.Kind != token.STRING {
		return "", false
	}

	value, err := strconv.Unquote(literal.Value)
	if err != nil {
		return "", false
	}

	return value, true
}
