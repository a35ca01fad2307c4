package embedding

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

const defaultMaxTokens = 256

// inputEncoder fills fixed-length BERT inputs (input_ids, attention_mask,
// token_type_ids) for one text. Each slice holds maxTokens entries.
type inputEncoder interface {
	encode(text string, inputIDs, attentionMask, tokenTypeIDs []int64) error
}

// newInputEncoder loads the tokenizer.json at path. An empty path selects
// the vocabulary-free hash tokenizer, which only suits tests.
func newInputEncoder(path string, maxTokens int) (inputEncoder, int, error) {
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	if path == "" {
		return newHashTokenizer(maxTokens), maxTokens, nil
	}
	tk, err := newVocabTokenizer(path, maxTokens)
	if err != nil {
		return nil, 0, err
	}
	return tk, maxTokens, nil
}

// vocabTokenizer encodes with the model's own tokenizer.json so token ids
// match the vocabulary the model was trained on.
type vocabTokenizer struct {
	tk *tokenizer.Tokenizer
}

func newVocabTokenizer(path string, maxTokens int) (*vocabTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", path, err)
	}
	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxTokens,
		Strategy:  tokenizer.LongestFirst,
		Stride:    0,
	})
	return &vocabTokenizer{tk: tk}, nil
}

func (t *vocabTokenizer) encode(text string, inputIDs, attentionMask, tokenTypeIDs []int64) error {
	en, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return fmt.Errorf("tokenize: %w", err)
	}
	fillInputs(en.GetIds(), en.GetAttentionMask(), en.GetTypeIds(), inputIDs, attentionMask, tokenTypeIDs)
	return nil
}

// fillInputs copies an encoding into the tensor slices and pads the rest
// with zeros. Entries past len(inputIDs) are dropped.
func fillInputs(ids, mask, types []int, inputIDs, attentionMask, tokenTypeIDs []int64) {
	for i := range inputIDs {
		inputIDs[i], attentionMask[i], tokenTypeIDs[i] = tokenPad, 0, 0
		if i < len(ids) {
			inputIDs[i] = int64(ids[i])
		}
		if i < len(mask) {
			attentionMask[i] = int64(mask[i])
		}
		if i < len(types) {
			tokenTypeIDs[i] = int64(types[i])
		}
	}
}

// BERT special token ids and the vocabulary range hashed words fall into.
const (
	tokenPad  = 0
	tokenCLS  = 101
	tokenSEP  = 102
	vocabBase = 1000
	vocabSize = 30522
)

// hashTokenizer fills the same inputs without a vocabulary file. Words are lower-cased, split on
// punctuation and hashed into the vocabulary range.
type hashTokenizer struct {
	maxTokens int
}

func newHashTokenizer(maxTokens int) *hashTokenizer {
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	return &hashTokenizer{maxTokens: maxTokens}
}

// encode writes text into the three input slices, which must each hold
// maxTokens entries. Text beyond maxTokens-2 words is dropped.
func (t *hashTokenizer) encode(text string, inputIDs, attentionMask, tokenTypeIDs []int64) error {
	for i := range inputIDs {
		inputIDs[i] = tokenPad
		attentionMask[i] = 0
		tokenTypeIDs[i] = 0
	}
	inputIDs[0], attentionMask[0] = tokenCLS, 1
	pos := 1
	for _, w := range splitTokens(text) {
		if pos >= t.maxTokens-1 {
			break
		}
		inputIDs[pos], attentionMask[pos] = tokenID(w), 1
		pos++
	}
	inputIDs[pos], attentionMask[pos] = tokenSEP, 1
	return nil
}

// splitTokens lower-cases text and splits it into words and single
// punctuation marks.
func splitTokens(text string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		start := -1
		for i, r := range field {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				if start >= 0 {
					out = append(out, field[start:i])
					start = -1
				}
				out = append(out, string(r))
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			out = append(out, field[start:])
		}
	}
	return out
}

func tokenID(word string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int64(vocabBase + h.Sum32()%(vocabSize-vocabBase))
}
