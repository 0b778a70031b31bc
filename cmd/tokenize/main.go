// Command tokenize loads a GGUF model file's tokenizer vocabulary and
// tokenizes standard input, printing one token per line as "id\ttext".
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"k8s.io/klog/v2"

	"github.com/gomlx/gguf-tokenize/models/gguf"
	"github.com/gomlx/gguf-tokenize/tokenizers/gguftok"
	"github.com/gomlx/gguf-tokenize/tokenizers/vocab"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, errorStyle.Render("usage: tokenize <model.gguf>"))
		os.Exit(2)
	}
	modelPath := os.Args[1]

	if err := run(modelPath); err != nil {
		klog.Errorf("tokenize: %v", err)
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func run(modelPath string) error {
	f, err := gguf.OpenMmap(modelPath)
	if err != nil {
		return err
	}

	src, err := f.VocabularySource()
	if err != nil {
		return err
	}
	src.Warnf = func(format string, args ...any) {
		klog.Warningf(format, args...)
	}

	v, err := vocab.Load(src)
	if err != nil {
		return err
	}

	tok := gguftok.New(v)

	fmt.Fprintln(os.Stderr, headerStyle.Render(fmt.Sprintf("loaded %s vocabulary (%d tokens)", v.VocabType(), v.NTokens())))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		ids, err := tok.Tokenize(line, true, true)
		if err != nil {
			return err
		}
		for _, id := range ids {
			td, err := v.GetTokenData(id)
			text := ""
			if err == nil {
				text = td.Text
			}
			fmt.Printf("%s\t%s\n", idStyle.Render(fmt.Sprintf("%d", id)), text)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
