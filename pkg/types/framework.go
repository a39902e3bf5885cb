package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SourceType tags the variant of a FrameworkSource.
type SourceType string

const (
	SourceNPM    SourceType = "npm"
	SourcePython SourceType = "python"
	SourceGitHub SourceType = "github"
	SourceCustom SourceType = "custom"
)

// FrameworkSource describes where a framework's documentation comes from.
// The set of implementations is closed: NPMSource, PythonSource,
// GitHubSource and CustomSource. Consumers switch over all four.
type FrameworkSource interface {
	Type() SourceType
	isFrameworkSource()
}

// NPMSource is a JavaScript package published to the npm registry.
type NPMSource struct {
	Package string `json:"package"`
}

// PythonSource is a package published to PyPI.
type PythonSource struct {
	Package string `json:"package"`
	DocsURL string `json:"docsUrl,omitempty"`
}

// GitHubSource is documentation kept inside a GitHub repository.
type GitHubSource struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch,omitempty"`
	DocsPath string `json:"docsPath,omitempty"`
}

// CustomSource is documentation hosted at an arbitrary URL.
type CustomSource struct {
	DocsURL string `json:"docsUrl"`
}

func (NPMSource) Type() SourceType    { return SourceNPM }
func (PythonSource) Type() SourceType { return SourcePython }
func (GitHubSource) Type() SourceType { return SourceGitHub }
func (CustomSource) Type() SourceType { return SourceCustom }

func (NPMSource) isFrameworkSource()    {}
func (PythonSource) isFrameworkSource() {}
func (GitHubSource) isFrameworkSource() {}
func (CustomSource) isFrameworkSource() {}

// Framework is a registry entry for a documented framework.
type Framework struct {
	Name        string
	DisplayName string
	Source      FrameworkSource
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the common fields and the variant-specific fields.
func (f *Framework) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: framework name is required", ErrInvalidInput)
	}
	if f.Source == nil {
		return fmt.Errorf("%w: framework %q has no source", ErrInvalidInput, f.Name)
	}

	switch s := f.Source.(type) {
	case NPMSource:
		if s.Package == "" {
			return fmt.Errorf("%w: npm source requires a package", ErrInvalidInput)
		}
	case PythonSource:
		if s.Package == "" {
			return fmt.Errorf("%w: python source requires a package", ErrInvalidInput)
		}
		if s.DocsURL != "" {
			if err := validateURL(s.DocsURL); err != nil {
				return err
			}
		}
	case GitHubSource:
		if s.Owner == "" || s.Repo == "" {
			return fmt.Errorf("%w: github source requires owner and repo", ErrInvalidInput)
		}
	case CustomSource:
		if err := validateURL(s.DocsURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown source type %T", ErrInvalidInput, f.Source)
	}
	return nil
}

// DocsLocation returns the canonical location of the framework's docs.
func (f *Framework) DocsLocation() string {
	switch s := f.Source.(type) {
	case NPMSource:
		return "https://www.npmjs.com/package/" + s.Package
	case PythonSource:
		if s.DocsURL != "" {
			return s.DocsURL
		}
		return "https://pypi.org/project/" + s.Package + "/"
	case GitHubSource:
		branch := s.Branch
		if branch == "" {
			branch = "main"
		}
		loc := fmt.Sprintf("https://github.com/%s/%s/tree/%s", s.Owner, s.Repo, branch)
		if s.DocsPath != "" {
			loc += "/" + strings.TrimPrefix(s.DocsPath, "/")
		}
		return loc
	case CustomSource:
		return s.DocsURL
	default:
		return ""
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid docs url %q", ErrInvalidInput, raw)
	}
	return nil
}

// EncodeSource serializes the variant payload. The type tag is returned
// separately so storage can index it.
func EncodeSource(src FrameworkSource) (SourceType, []byte, error) {
	switch s := src.(type) {
	case NPMSource, PythonSource, GitHubSource, CustomSource:
		data, err := json.Marshal(s)
		if err != nil {
			return "", nil, err
		}
		return src.Type(), data, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown source type %T", ErrInvalidInput, src)
	}
}

// DecodeSource is the inverse of EncodeSource.
func DecodeSource(typ SourceType, data []byte) (FrameworkSource, error) {
	switch typ {
	case SourceNPM:
		var s NPMSource
		err := decodeInto(data, &s)
		return s, err
	case SourcePython:
		var s PythonSource
		err := decodeInto(data, &s)
		return s, err
	case SourceGitHub:
		var s GitHubSource
		err := decodeInto(data, &s)
		return s, err
	case SourceCustom:
		var s CustomSource
		err := decodeInto(data, &s)
		return s, err
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, typ)
	}
}

func decodeInto(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

type frameworkJSON struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"`
	Type        SourceType      `json:"type"`
	Source      json.RawMessage `json:"source"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MarshalJSON writes the source as {"type": ..., "source": {...}}.
func (f Framework) MarshalJSON() ([]byte, error) {
	typ, data, err := EncodeSource(f.Source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frameworkJSON{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Type:        typ,
		Source:      data,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	})
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (f *Framework) UnmarshalJSON(b []byte) error {
	var raw frameworkJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	src, err := DecodeSource(raw.Type, raw.Source)
	if err != nil {
		return err
	}
	*f = Framework{
		Name:        raw.Name,
		DisplayName: raw.DisplayName,
		Source:      src,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}
