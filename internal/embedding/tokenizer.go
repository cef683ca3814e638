package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const (
	tokenPAD = "[PAD]"
	tokenUNK = "[UNK]"
	tokenCLS = "[CLS]"
	tokenSEP = "[SEP]"
	// Words longer than this become [UNK].
	maxWordRunes = 100
)

// WordPieceTokenizer is the uncased BERT tokenizer used by MiniLM sentence models.
// Text is lower-cased, accents are stripped, words are split on whitespace and
// punctuation, then each word is matched greedily (longest prefix first) against the vocabulary.
type WordPieceTokenizer struct {
	vocab              map[string]int64
	pad, unk, cls, sep int64
}

// NewWordPieceTokenizer builds a tokenizer from vocabulary tokens; a token's index is its ID.
func NewWordPieceTokenizer(tokens []string) (*WordPieceTokenizer, error) {
	vocab := make(map[string]int64, len(tokens))
	for i, tok := range tokens {
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = int64(i)
		}
	}
	t := &WordPieceTokenizer{vocab: vocab}
	specials := []struct {
		token string
		id    *int64
	}{
		{tokenPAD, &t.pad},
		{tokenUNK, &t.unk},
		{tokenCLS, &t.cls},
		{tokenSEP, &t.sep},
	}
	for _, sp := range specials {
		id, ok := vocab[sp.token]
		if !ok {
			return nil, fmt.Errorf("vocabulary has no %s token", sp.token)
		}
		*sp.id = id
	}
	return t, nil
}

// LoadWordPieceTokenizer reads a vocab.txt file with one token per line.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return NewWordPieceTokenizer(tokens)
}

// Tokenize returns [CLS] pieces... [SEP] padded to maxTokens. Pieces that do not fit are dropped.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 2
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = t.pad
	}

	inputIDs[0] = t.cls
	attentionMask[0] = 1
	pos := 1
words:
	for _, word := range basicTokens(text) {
		for _, id := range t.wordPiece(word) {
			if pos >= maxTokens-1 {
				break words
			}
			inputIDs[pos] = id
			attentionMask[pos] = 1
			pos++
		}
	}
	inputIDs[pos] = t.sep
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

func (t *WordPieceTokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.unk}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := int64(-1)
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{t.unk}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// basicTokens lower-cases, strips accents and control characters, and splits text
// into words. Punctuation and CJK ideographs become single-rune tokens.
func basicTokens(text string) []string {
	text = norm.NFD.String(strings.ToLower(text))
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunctuation(r) || unicode.Is(unicode.Han, r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// isPunctuation treats every non-alphanumeric ASCII symbol as punctuation, like BERT.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// meanPool averages the token vectors of hidden (seq x dims, row-major) over the
// positions where mask is set. This is the sentence embedding of MiniLM-style models.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for pos, m := range mask {
		if m == 0 {
			continue
		}
		if (pos+1)*dims > len(hidden) {
			break
		}
		for i, v := range hidden[pos*dims : (pos+1)*dims] {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
