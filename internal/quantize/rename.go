package quantize

import (
	"context"
	"fmt"
	"strings"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/internal/logger"
)

// RenameArch copies input to output with general.architecture set to arch.
// Tensors and every other key are copied unchanged. With renameKeys, keys
// under the old architecture prefix ("llama.context_length") move to the
// new prefix as well. This lets a model whose architecture a downstream
// tool does not know be presented under a compatible name and back.
func RenameArch(ctx context.Context, input, output, arch string, renameKeys bool) error {
	arch = strings.TrimSpace(arch)
	if arch == "" {
		return fmt.Errorf("quantize: empty architecture name")
	}
	log := logger.FromContext(ctx)

	in, err := gguf.Open(input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContainerOpen, err)
	}
	defer func() { _ = in.Close() }()

	old, hasArch := in.String(gguf.KeyArchitecture)
	archValue := gguf.Value{Type: gguf.TypeString, Value: arch}

	w := gguf.NewWriter()
	if !hasArch {
		w.SetKV(gguf.KeyArchitecture, archValue)
	}
	renamed := 0
	for _, k := range in.Keys {
		v := in.KV[k]
		switch {
		case k == gguf.KeyArchitecture:
			w.SetKV(k, archValue)
		case renameKeys && hasArch && strings.HasPrefix(k, old+"."):
			w.SetKV(arch+k[len(old):], v)
			renamed++
		default:
			w.SetKV(k, v)
		}
	}
	for i := range in.Tensors {
		t, err := in.Tensor(i)
		if err != nil {
			return err
		}
		if err := w.AddTensor(t); err != nil {
			return err
		}
	}
	if err := w.WriteFile(output); err != nil {
		return err
	}
	log.Info("architecture renamed", "from", old, "to", arch, "keys_renamed", renamed, "output", output)
	return nil
}
