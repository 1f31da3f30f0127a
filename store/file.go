package store

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/ltick/tick-soa/config"
	"github.com/ltick/tick-soa/utility"
)

const manifestExt = ".json"

var (
	errFileInitiate = "store(file): initiate '%s' error"
	errFileSave     = "store(file): save '%s' error"
	errFileLoad     = "store(file): load '%s' error"
	errFileDelete   = "store(file): delete '%s' error"
	errFileList     = "store(file): list '%s' error"
)

// FileHandler keeps one JSON manifest per asset under a root directory.
type FileHandler struct {
	Root string
}

func NewFileHandler() Handler {
	return &FileHandler{}
}

func (this *FileHandler) Initiate(ctx context.Context, settings *config.Settings) error {
	root, err := filepath.Abs(settings.StorePath)
	if err != nil {
		return errors.Annotatef(err, errFileInitiate, settings.StorePath)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return errors.Annotatef(err, errFileInitiate, root)
	}
	this.Root = root
	return nil
}

func (this *FileHandler) manifest(path string) (string, error) {
	p, err := normalizePath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(this.Root, filepath.FromSlash(p)+manifestExt), nil
}

func (this *FileHandler) Save(ctx context.Context, record Record) error {
	file, err := this.manifest(record.Path)
	if err != nil {
		return errors.Annotatef(err, errFileSave, record.Path)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Annotatef(err, errFileSave, record.Path)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return errors.Annotatef(err, errFileSave, record.Path)
	}
	if err := ioutil.WriteFile(file, data, 0644); err != nil {
		return errors.Annotatef(err, errFileSave, record.Path)
	}
	return nil
}

func (this *FileHandler) Load(ctx context.Context, path string) (Record, error) {
	file, err := this.manifest(path)
	if err != nil {
		return Record{}, errors.Annotatef(err, errFileLoad, path)
	}
	return readManifest(file, path)
}

func readManifest(file string, path string) (Record, error) {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.NotFoundf("asset %q", path)
		}
		return Record{}, errors.Annotatef(err, errFileLoad, path)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, errors.Annotatef(err, errFileLoad, path)
	}
	if utility.Checksum(record.Data) != record.Checksum {
		return Record{}, errors.Annotatef(errors.NotValidf("checksum of asset %q", path), errFileLoad, path)
	}
	return record, nil
}

func (this *FileHandler) Delete(ctx context.Context, path string) error {
	file, err := this.manifest(path)
	if err != nil {
		return errors.Annotatef(err, errFileDelete, path)
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return errors.Annotatef(err, errFileDelete, path)
	}
	return nil
}

func (this *FileHandler) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := filepath.Walk(this.Root, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(file, manifestExt) {
			return nil
		}
		rel, err := filepath.Rel(this.Root, file)
		if err != nil {
			return err
		}
		path := strings.TrimSuffix(filepath.ToSlash(rel), manifestExt)
		record, err := readManifest(file, path)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, errors.Annotatef(err, errFileList, this.Root)
	}
	sortRecords(records)
	return records, nil
}

func (this *FileHandler) Close() error {
	return nil
}
