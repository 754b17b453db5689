package infra

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileCache grava a resposta crua no caminho pedido.
//
// A escrita é atômica (arquivo temporário no mesmo diretório + rename): quem ler o
// arquivo durante o callback de sucesso nunca vê conteúdo parcial.
type FileCache struct {
	Perm os.FileMode
}

func (c FileCache) Write(path string, data []byte) error {
	perm := c.Perm
	if perm == 0 {
		perm = 0o644
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("response cache: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("response cache: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("response cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("response cache: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return fmt.Errorf("response cache: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("response cache: %w", err)
	}
	return nil
}
