package util

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const metricsIdFile = "metrics.id"

// MetricsId describes a directory of sample files written for one pool.
//
type MetricsId struct {
	Id     string            `json:"id"`
	Values map[string]string `json:"values,omitempty"`
}

func WriteMetricsId(id, outPath string, values map[string]string) error {
	data, err := json.MarshalIndent(&MetricsId{Id: id, Values: values}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outPath, metricsIdFile), data, os.ModePerm)
}

func ReadMetricsId(path string) (*MetricsId, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	metricsId := &MetricsId{}
	if err = json.Unmarshal(data, metricsId); err != nil {
		return nil, err
	}
	return metricsId, nil
}

// DiscoverMetrics walks root and returns every metrics directory keyed by its path.
//
func DiscoverMetrics(root string) (map[string]*MetricsId, error) {
	metricsMap := make(map[string]*MetricsId)
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || filepath.Base(path) != metricsIdFile {
			return nil
		}
		metricsId, err := ReadMetricsId(path)
		if err != nil {
			return errors.Wrapf(err, "error reading [%s]", path)
		}
		metricsMap[filepath.Dir(path)] = metricsId
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metricsMap, nil
}
