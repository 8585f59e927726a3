package show

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrProgramNotFound 程序不存在
	ErrProgramNotFound = errors.New("program not found")
	ErrInvalidName     = errors.New("invalid program name")
)

var programName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateName 程序名只允许字母、数字与 _ . -
func ValidateName(name string) error {
	if !programName.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return nil
}

// ProgramInfo 程序库条目
type ProgramInfo struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgramStore 程序库：按名称存取编译后的预置包字节
type ProgramStore interface {
	List(ctx context.Context) ([]ProgramInfo, error)
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// ProgramExt 磁盘程序文件扩展名（与原有灯光程序文件一致）
const ProgramExt = ".PKT"

// DirStore 以目录保存程序：<dir>/<name>.PKT
type DirStore struct {
	Dir string
}

func (s DirStore) path(name string) string { return filepath.Join(s.Dir, name+ProgramExt) }

func (s DirStore) List(ctx context.Context) ([]ProgramInfo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []ProgramInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ProgramExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, ProgramInfo{
			Name:      strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Size:      int(info.Size()),
			UpdatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s DirStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, name)
	}
	return data, err
}

// Save 先写临时文件再改名，播放中的读取不会看到半个文件
func (s DirStore) Save(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}
