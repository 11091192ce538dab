package stream

import (
	"bufio"
	"encoding/csv"
	"io"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	apperrors "github.com/mia-platform/crud-service-sub002/internal/pkg/errors"
)

// 지원되는 MIME 타입들
const (
	MimeNDJSON = "application/x-ndjson"
	MimeJSON   = "application/json"
	MimeCSV    = "text/csv"
)

// Options는 코덱 설정입니다
type Options struct {
	// CSV 구분자. 비어 있으면 쉼표입니다.
	Delimiter string
	// CSV 헤더에 사용할 필드 순서. 비어 있으면 첫 레코드의 키를 사용합니다.
	Fields []string
}

// Parser는 레코드 스트림을 순차적으로 읽습니다. 스트림 끝에서 io.EOF를
// 반환합니다.
type Parser interface {
	Next() (map[string]interface{}, error)
}

// Stringifier는 레코드 스트림을 직렬화합니다
type Stringifier interface {
	Write(record map[string]interface{}) error
	Close() error
}

// GetParser는 MIME 타입에 맞는 파서를 반환합니다.
// 지원하지 않는 타입이면 nil을 반환하며, 호출자는 이를 415 계열 응답으로
// 변환해야 합니다.
func GetParser(mimeType string, opts Options, r io.Reader) Parser {
	switch normalizeMime(mimeType) {
	case MimeNDJSON:
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		return &ndjsonParser{scanner: scanner}
	case MimeJSON:
		return &jsonArrayParser{decoder: json.NewDecoder(r)}
	case MimeCSV:
		reader := csv.NewReader(r)
		if opts.Delimiter != "" {
			reader.Comma = rune(opts.Delimiter[0])
		}
		return &csvParser{reader: reader}
	default:
		return nil
	}
}

// GetStringifier는 MIME 타입에 맞는 직렬화기를 반환합니다.
// 지원하지 않는 타입이면 nil입니다.
func GetStringifier(mimeType string, opts Options, w io.Writer) Stringifier {
	switch normalizeMime(mimeType) {
	case MimeNDJSON:
		return &ndjsonStringifier{w: w}
	case MimeJSON:
		return &jsonArrayStringifier{w: w}
	case MimeCSV:
		writer := csv.NewWriter(w)
		if opts.Delimiter != "" {
			writer.Comma = rune(opts.Delimiter[0])
		}
		return &csvStringifier{writer: writer, fields: opts.Fields}
	default:
		return nil
	}
}

func normalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

type ndjsonParser struct {
	scanner *bufio.Scanner
}

func (p *ndjsonParser) Next() (map[string]interface{}, error) {
	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]interface{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "malformed NDJSON record")
		}
		return record, nil
	}
	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

type jsonArrayParser struct {
	decoder *json.Decoder
	started bool
}

func (p *jsonArrayParser) Next() (map[string]interface{}, error) {
	if !p.started {
		// 배열 여는 토큰 소비
		token, err := p.decoder.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "malformed JSON body")
		}
		if delim, ok := token.(json.Delim); !ok || delim != '[' {
			return nil, apperrors.New(apperrors.ErrCodeBadRequest, "JSON import body must be an array")
		}
		p.started = true
	}

	if !p.decoder.More() {
		return nil, io.EOF
	}

	var record map[string]interface{}
	if err := p.decoder.Decode(&record); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "malformed JSON record")
	}
	return record, nil
}

type csvParser struct {
	reader *csv.Reader
	header []string
}

func (p *csvParser) Next() (map[string]interface{}, error) {
	if p.header == nil {
		header, err := p.reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "malformed CSV header")
		}
		p.header = header
	}

	row, err := p.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "malformed CSV record")
	}

	record := make(map[string]interface{}, len(p.header))
	for i, column := range p.header {
		if i < len(row) {
			record[column] = row[i]
		}
	}
	return record, nil
}

type ndjsonStringifier struct {
	w io.Writer
}

func (s *ndjsonStringifier) Write(record map[string]interface{}) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(raw); err != nil {
		return err
	}
	_, err = s.w.Write([]byte{'\n'})
	return err
}

func (s *ndjsonStringifier) Close() error {
	return nil
}

type jsonArrayStringifier struct {
	w       io.Writer
	started bool
}

func (s *jsonArrayStringifier) Write(record map[string]interface{}) error {
	prefix := "["
	if s.started {
		prefix = ","
	}
	if _, err := io.WriteString(s.w, prefix); err != nil {
		return err
	}
	s.started = true

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.w.Write(raw)
	return err
}

func (s *jsonArrayStringifier) Close() error {
	if !s.started {
		_, err := io.WriteString(s.w, "[]")
		return err
	}
	_, err := io.WriteString(s.w, "]")
	return err
}

type csvStringifier struct {
	writer      *csv.Writer
	fields      []string
	wroteHeader bool
}

func (s *csvStringifier) Write(record map[string]interface{}) error {
	if s.fields == nil {
		s.fields = make([]string, 0, len(record))
		for key := range record {
			s.fields = append(s.fields, key)
		}
		sort.Strings(s.fields)
	}
	if !s.wroteHeader {
		if err := s.writer.Write(s.fields); err != nil {
			return err
		}
		s.wroteHeader = true
	}

	row := make([]string, len(s.fields))
	for i, field := range s.fields {
		row[i] = stringifyCSVValue(record[field])
	}
	return s.writer.Write(row)
}

func (s *csvStringifier) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}

func stringifyCSVValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
