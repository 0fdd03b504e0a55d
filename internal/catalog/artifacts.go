package catalog

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

// Artifact file names inside the data directory.
const (
	ProductsFile   = "products_clean.json"
	FeaturesFile   = "products_features.json"
	MappingsFile   = "id_mappings.json"
	EmbeddingsFile = "embeddings.gob"
	IndexFile      = "product_index.hnsw"
)

// Paths locates the catalog artifacts.
type Paths struct {
	Products   string
	Features   string
	Mappings   string
	Embeddings string
	Index      string
}

// DefaultPaths returns the standard artifact layout under dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Products:   filepath.Join(dir, ProductsFile),
		Features:   filepath.Join(dir, FeaturesFile),
		Mappings:   filepath.Join(dir, MappingsFile),
		Embeddings: filepath.Join(dir, EmbeddingsFile),
		Index:      filepath.Join(dir, IndexFile),
	}
}

// Load reads and cross-validates the catalog artifacts. All files are opened,
// read fully, and closed before Load returns.
func Load(paths Paths) (*Catalog, error) {
	var products []Product
	if err := readJSON(paths.Products, &products); err != nil {
		return nil, err
	}

	var features map[string]FeatureRecord
	if err := readJSON(paths.Features, &features); err != nil {
		return nil, err
	}

	var mapping Mapping
	if err := readJSON(paths.Mappings, &mapping); err != nil {
		return nil, err
	}

	embeddings, err := ReadEmbeddings(paths.Embeddings)
	if err != nil {
		return nil, err
	}

	slog.Info("catalog_artifacts_loaded",
		slog.String("products", paths.Products),
		slog.Int("count", len(products)))

	return New(products, features, mapping, embeddings)
}

// ReadProducts reads a product catalog JSON file.
func ReadProducts(path string) ([]Product, error) {
	var products []Product
	if err := readJSON(path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return shoperrors.New(shoperrors.ErrCodeArtifactMissing,
				fmt.Sprintf("artifact %s not found", filepath.Base(path)), err).
				WithSuggestion("Run 'shoprank build' to generate the catalog artifacts")
		}
		return shoperrors.LoadFailure(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	if err := json.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return shoperrors.LoadFailure(fmt.Sprintf("decode %s", filepath.Base(path)), err)
	}
	return nil
}

// ReadEmbeddings reads the gob-encoded product vectors.
func ReadEmbeddings(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shoperrors.New(shoperrors.ErrCodeArtifactMissing,
				fmt.Sprintf("artifact %s not found", filepath.Base(path)), err)
		}
		return nil, shoperrors.LoadFailure(fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	var vectors [][]float32
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&vectors); err != nil {
		return nil, shoperrors.LoadFailure("decode embeddings", err)
	}
	return vectors, nil
}

// WriteProducts writes the product catalog JSON atomically.
func WriteProducts(path string, products []Product) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(products)
	})
}

// WriteFeatures writes the feature table JSON atomically.
func WriteFeatures(path string, features map[string]FeatureRecord) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(features)
	})
}

// WriteMapping writes the id mapping JSON atomically.
func WriteMapping(path string, m Mapping) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
}

// WriteEmbeddings writes the product vectors atomically.
func WriteEmbeddings(path string, vectors [][]float32) error {
	return writeAtomic(path, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(vectors)
	})
}

// writeAtomic writes through a temp file and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
