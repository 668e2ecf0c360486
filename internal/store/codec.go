package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"faqbot/internal/corpus"
	"faqbot/internal/tfidf"
)

// matrixMagic prefixes the binary matrix payload.
var matrixMagic = [4]byte{'F', 'Q', 'M', 'X'}

const matrixVersion uint16 = 1

type vectorizerPayload struct {
	BuildID    string
	BuiltAt    time.Time
	Vocabulary map[string]int
	IDF        []float64
	NGramMin   int
	NGramMax   int
	Documents  int
}

type corpusPayload struct {
	BuildID     string          `json:"build_id"`
	BuiltAt     time.Time       `json:"built_at"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Records     []corpus.Record `json:"records"`
}

// encodeArtifacts renders every artifact of a, keyed by artifact name.
func encodeArtifacts(a *Artifacts) (map[string][]byte, error) {
	if a == nil || a.Model == nil {
		return nil, errors.New("nothing to save")
	}
	if len(a.Matrix) != len(a.Corpus) {
		return nil, fmt.Errorf("matrix has %d rows but corpus has %d records", len(a.Matrix), len(a.Corpus))
	}

	var vec bytes.Buffer
	err := gob.NewEncoder(&vec).Encode(vectorizerPayload{
		BuildID:    a.BuildID,
		BuiltAt:    a.BuiltAt,
		Vocabulary: a.Model.Vocabulary,
		IDF:        a.Model.IDF,
		NGramMin:   a.Model.NGramMin,
		NGramMax:   a.Model.NGramMax,
		Documents:  a.Model.Documents,
	})
	if err != nil {
		return nil, fmt.Errorf("encode vectorizer: %w", err)
	}

	cache, err := json.MarshalIndent(corpusPayload{
		BuildID:     a.BuildID,
		BuiltAt:     a.BuiltAt,
		Fingerprint: a.Fingerprint,
		Records:     a.Corpus,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode corpus cache: %w", err)
	}

	return map[string][]byte{
		VectorizerArtifact: vec.Bytes(),
		MatrixArtifact:     encodeMatrix(a.BuildID, a.Matrix),
		CorpusArtifact:     cache,
	}, nil
}

// decodeArtifacts parses a full artifact set and checks that its parts
// belong to the same fit. Every failure is reported as ErrCorrupt.
func decodeArtifacts(payloads map[string][]byte) (*Artifacts, error) {
	var vec vectorizerPayload
	if err := gob.NewDecoder(bytes.NewReader(payloads[VectorizerArtifact])).Decode(&vec); err != nil {
		return nil, corrupt("load", fmt.Errorf("%s: %w", VectorizerArtifact, err))
	}

	matrixID, matrix, err := decodeMatrix(payloads[MatrixArtifact])
	if err != nil {
		return nil, corrupt("load", fmt.Errorf("%s: %w", MatrixArtifact, err))
	}

	var cache corpusPayload
	if err := json.Unmarshal(payloads[CorpusArtifact], &cache); err != nil {
		return nil, corrupt("load", fmt.Errorf("%s: %w", CorpusArtifact, err))
	}

	if vec.BuildID != matrixID || vec.BuildID != cache.BuildID {
		return nil, corrupt("load", fmt.Errorf("build ids disagree: vectorizer=%q matrix=%q corpus=%q",
			vec.BuildID, matrixID, cache.BuildID))
	}
	if len(matrix) != len(cache.Records) {
		return nil, corrupt("load", fmt.Errorf("matrix has %d rows but corpus cache has %d records",
			len(matrix), len(cache.Records)))
	}

	if vec.Vocabulary == nil {
		vec.Vocabulary = map[string]int{}
	}
	model := &tfidf.Model{
		Vocabulary: vec.Vocabulary,
		IDF:        vec.IDF,
		NGramMin:   vec.NGramMin,
		NGramMax:   vec.NGramMax,
		Documents:  vec.Documents,
	}
	if err := model.Validate(); err != nil {
		return nil, corrupt("load", err)
	}
	for i, row := range matrix {
		if err := model.ValidateRow(row); err != nil {
			return nil, corrupt("load", fmt.Errorf("row %d: %w", i, err))
		}
	}

	return &Artifacts{
		BuildID:     vec.BuildID,
		BuiltAt:     vec.BuiltAt,
		Fingerprint: cache.Fingerprint,
		Model:       model,
		Matrix:      matrix,
		Corpus:      cache.Records,
	}, nil
}

// encodeMatrix writes rows as little-endian binary:
//
//	magic[4] version:u16 idLen:u16 id rows:u32 { nnz:u32 { index:u32 value:f64 }* }*
func encodeMatrix(buildID string, rows []tfidf.SparseVector) []byte {
	size := 4 + 2 + 2 + len(buildID) + 4
	for _, r := range rows {
		size += 4 + 12*r.Len()
	}
	buf := make([]byte, 0, size)

	buf = append(buf, matrixMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, matrixVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(buildID)))
	buf = append(buf, buildID...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rows)))
	for _, r := range rows {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Len()))
		for i, idx := range r.Indices {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(idx))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(r.Values[i]))
		}
	}
	return buf
}

func decodeMatrix(data []byte) (string, []tfidf.SparseVector, error) {
	r := &byteReader{data: data}

	magic := r.next(4)
	if r.err != nil || !bytes.Equal(magic, matrixMagic[:]) {
		return "", nil, errors.New("bad magic")
	}
	if v := r.u16(); r.err == nil && v != matrixVersion {
		return "", nil, fmt.Errorf("unsupported version %d", v)
	}
	id := string(r.next(int(r.u16())))
	count := r.u32()
	if r.err != nil {
		return "", nil, r.err
	}
	// Every row needs at least its 4-byte length
	if uint64(count)*4 > uint64(r.remaining()) {
		return "", nil, errTruncated
	}

	rows := make([]tfidf.SparseVector, count)
	for i := range rows {
		nnz := int(r.u32())
		if r.err != nil {
			return "", nil, r.err
		}
		if nnz == 0 {
			continue
		}
		if nnz*12 > r.remaining() {
			return "", nil, errTruncated
		}
		rows[i] = tfidf.SparseVector{
			Indices: make([]int, nnz),
			Values:  make([]float64, nnz),
		}
		for j := 0; j < nnz; j++ {
			rows[i].Indices[j] = int(r.u32())
			rows[i].Values[j] = math.Float64frombits(r.u64())
		}
	}
	if r.err != nil {
		return "", nil, r.err
	}
	if r.remaining() != 0 {
		return "", nil, fmt.Errorf("%d trailing bytes", r.remaining())
	}
	return id, rows, nil
}

var errTruncated = errors.New("truncated payload")

type byteReader struct {
	data []byte
	off  int
	err  error
}

func (r *byteReader) remaining() int { return len(r.data) - r.off }

func (r *byteReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.remaining() {
		r.err = errTruncated
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *byteReader) u16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *byteReader) u32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *byteReader) u64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
