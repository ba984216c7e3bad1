package tagger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// Files expected in an ONNX model directory
const (
	ONNXModelFile     = "model.onnx"
	ONNXTokenizerFile = "tokenizer.json"
	ONNXConfigFile    = "config.json"
)

// ONNXConfig configures an ONNXTagger
type ONNXConfig struct {
	ModelDir    string
	LibraryPath string // onnxruntime shared library; empty uses the platform default
	Device      string // auto, cpu, gpu
	MaxLength   int
}

// ONNXTagger runs a token-classification model exported to ONNX.
// Subword predictions are collapsed to words using the first subword of each word.
type ONNXTagger struct {
	mu         sync.Mutex
	tk         *tokenizer.Tokenizer
	session    *ort.DynamicAdvancedSession
	inputNames []string
	labels     []string
	maxLength  int
	device     string
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// NewONNXTagger loads the model, tokenizer and label map from cfg.ModelDir
func NewONNXTagger(cfg ONNXConfig) (*ONNXTagger, error) {
	modelPath := filepath.Join(cfg.ModelDir, ONNXModelFile)
	for _, name := range []string{ONNXModelFile, ONNXTokenizerFile, ONNXConfigFile} {
		if _, err := os.Stat(filepath.Join(cfg.ModelDir, name)); err != nil {
			return nil, fmt.Errorf("onnx model %s: %w", cfg.ModelDir, err)
		}
	}

	labels, err := loadLabels(filepath.Join(cfg.ModelDir, ONNXConfigFile))
	if err != nil {
		return nil, err
	}

	tk, err := pretrained.FromFile(filepath.Join(cfg.ModelDir, ONNXTokenizerFile))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	if err := acquireEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("inspect onnx model: %w", err)
	}
	if len(outputs) == 0 {
		_ = releaseEnvironment()
		return nil, fmt.Errorf("onnx model %s has no outputs", modelPath)
	}
	inputNames := make([]string, 0, len(inputs))
	for _, in := range inputs {
		inputNames = append(inputNames, in.Name)
	}

	session, device, err := newSession(modelPath, inputNames, outputs[0].Name, cfg.Device)
	if err != nil {
		_ = releaseEnvironment()
		return nil, err
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}

	return &ONNXTagger{
		tk:         tk,
		session:    session,
		inputNames: inputNames,
		labels:     labels,
		maxLength:  maxLength,
		device:     device,
	}, nil
}

// newSession prefers the CUDA provider unless device is cpu; auto falls back to CPU
func newSession(modelPath string, inputNames []string, outputName, device string) (*ort.DynamicAdvancedSession, string, error) {
	if device != "cpu" {
		session, err := newCUDASession(modelPath, inputNames, outputName)
		if err == nil {
			return session, "gpu", nil
		}
		if device == "gpu" {
			return nil, "", err
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, opts)
	if err != nil {
		return nil, "", fmt.Errorf("create onnx session: %w", err)
	}
	return session, "cpu", nil
}

func newCUDASession(modelPath string, inputNames []string, outputName string) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, fmt.Errorf("cuda provider options: %w", err)
	}
	defer cuda.Destroy()

	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return nil, fmt.Errorf("cuda execution provider: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, opts)
	if err != nil {
		return nil, fmt.Errorf("create cuda session: %w", err)
	}
	return session, nil
}

// Device reports the execution provider actually in use (cpu or gpu)
func (t *ONNXTagger) Device() string {
	return t.device
}

// Close releases the session and, for the last tagger, the runtime environment
func (t *ONNXTagger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return nil
	}
	err := t.session.Destroy()
	t.session = nil
	if envErr := releaseEnvironment(); err == nil {
		err = envErr
	}
	return err
}

// Tag implements Tagger
func (t *ONNXTagger) Tag(ctx context.Context, text string) ([]Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	n := len(enc.Ids)
	if n == 0 {
		return nil, nil
	}
	if n > t.maxLength {
		n = t.maxLength
	}

	features := map[string][]int{
		"input_ids":      enc.Ids[:n],
		"attention_mask": enc.AttentionMask[:n],
		"token_type_ids": enc.TypeIds[:n],
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, fmt.Errorf("onnx tagger is closed")
	}

	shape := ort.NewShape(1, int64(n))
	inputs := make([]ort.Value, 0, len(t.inputNames))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range t.inputNames {
		values, ok := features[name]
		if !ok {
			return nil, fmt.Errorf("unsupported model input %q", name)
		}
		tensor, err := ort.NewTensor(shape, toInt64(values))
		if err != nil {
			return nil, fmt.Errorf("input tensor %s: %w", name, err)
		}
		inputs = append(inputs, tensor)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(n), int64(len(t.labels))))
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer output.Destroy()

	if err := t.session.Run(inputs, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}

	predicted := argmaxRows(output.GetData(), len(t.labels))
	return aggregateWords(text, enc.Words[:n], enc.Offsets[:n], predicted, t.labels), nil
}

func toInt64(values []int) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

type modelConfig struct {
	ID2Label map[string]string `json:"id2label"`
}

// loadLabels reads the id2label table of a HuggingFace config.json
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("model config %s has no id2label", path)
	}

	ids := make([]int, 0, len(cfg.ID2Label))
	for k := range cfg.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("model config: bad label id %q", k)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	labels := make([]string, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("model config: label ids are not contiguous")
		}
		labels[i] = cfg.ID2Label[strconv.Itoa(id)]
	}
	return labels, nil
}

func argmaxRows(logits []float32, width int) []int {
	if width <= 0 {
		return nil
	}
	rows := len(logits) / width
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		row := logits[r*width : (r+1)*width]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		out[r] = best
	}
	return out
}

// aggregateWords folds subword predictions into word tokens. Offsets are rune
// offsets into text; special tokens carry word -1 or an empty offset range.
func aggregateWords(text string, words []int, offsets [][]int, predicted []int, labels []string) []Token {
	byteAt := runeToByte(text)

	var tokens []Token
	lastWord := -1
	for i := range words {
		if i >= len(offsets) || i >= len(predicted) {
			break
		}
		if words[i] < 0 || len(offsets[i]) != 2 || offsets[i][1] <= offsets[i][0] {
			continue
		}
		start, end := byteAt(offsets[i][0]), byteAt(offsets[i][1])

		if words[i] == lastWord && len(tokens) > 0 {
			last := &tokens[len(tokens)-1]
			if end > last.End() {
				last.Text = text[last.Offset:end]
			}
			continue
		}

		label := LabelOther
		if p := predicted[i]; p >= 0 && p < len(labels) {
			label = labels[p]
		}
		tokens = append(tokens, Token{Text: text[start:end], Offset: start, Label: label})
		lastWord = words[i]
	}
	return tokens
}

func runeToByte(text string) func(int) int {
	idx := make([]int, 0, len(text)+1)
	for b := range text {
		idx = append(idx, b)
	}
	idx = append(idx, len(text))
	return func(r int) int {
		if r < 0 {
			return 0
		}
		if r >= len(idx) {
			return len(text)
		}
		return idx[r]
	}
}
