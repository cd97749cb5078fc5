package redisindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/andar-cloud/ragkit/internal/domain"
)

// Hash field names for record content and its vector. The KNN score comes
// back under "__" + fieldVector + "_score".
const (
	fieldContent = "content"
	fieldVector  = "vector"
	fieldScore   = "__vector_score"
)

// Search runs an FT.SEARCH KNN query. Redis returns cosine distance; the
// result is converted to similarity (1 - distance) so scores match the
// embedded backend's convention.
func (s *Store) Search(
	ctx context.Context, collection string, vector []float32, k int, filter *domain.Filter,
) ([]domain.Match, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	queryStr := knnQuery(k, filter)
	cmd := s.b().Arbitrary("FT.SEARCH").Args(
		indexName(collection), queryStr,
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Build()

	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		// Searching before the collection was ever provisioned is a
		// well-defined empty result, same as the embedded backend.
		if isUnknownIndexErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ft.search %s: %w", collection, err)
	}

	return parseKNNResult(collection, raw)
}

// knnQuery renders the FT.SEARCH query string: an optional TAG pre-filter
// followed by the KNN clause.
func knnQuery(k int, filter *domain.Filter) string {
	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", k, fieldVector)
	if filter == nil {
		return "*=>" + knnPart
	}
	return fmt.Sprintf("(@%s:{%s})=>%s", filter.Field, escapeTag(filter.Value), knnPart)
}

// parseKNNResult walks the RESP2 reply: [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(collection string, raw []rueidis.RedisMessage) ([]domain.Match, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	matches := make([]domain.Match, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldArr, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		fields := parseFieldPairs(fieldArr)
		match := domain.Match{
			ID:      strings.TrimPrefix(key, collectionPrefix(collection)),
			Text:    fields[fieldContent],
			Payload: make(map[string]string),
		}
		if distStr, ok := fields[fieldScore]; ok {
			if dist, err := strconv.ParseFloat(distStr, 64); err == nil {
				match.Score = 1 - dist // cosine distance -> similarity
			}
		}
		for k, v := range fields {
			switch k {
			case fieldContent, fieldVector, fieldScore:
			default:
				match.Payload[k] = v
			}
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// parseFieldPairs converts the flat [name, value, name, value, ...] reply
// array into a map.
func parseFieldPairs(arr []rueidis.RedisMessage) map[string]string {
	fields := make(map[string]string, len(arr)/2)
	for i := 0; i+1 < len(arr); i += 2 {
		name, err := arr[i].ToString()
		if err != nil {
			continue
		}
		value, err := arr[i+1].ToString()
		if err != nil {
			continue
		}
		fields[name] = value
	}
	return fields
}

// escapeTag escapes characters with special meaning inside a TAG clause.
var tagEscaper = strings.NewReplacer(
	`,`, `\,`, `.`, `\.`, `<`, `\<`, `>`, `\>`, `{`, `\{`, `}`, `\}`,
	`"`, `\"`, `'`, `\'`, `:`, `\:`, `;`, `\;`, `!`, `\!`, `@`, `\@`,
	`#`, `\#`, `$`, `\$`, `%`, `\%`, `^`, `\^`, `&`, `\&`, `*`, `\*`,
	`(`, `\(`, `)`, `\)`, `-`, `\-`, `+`, `\+`, `=`, `\=`, `~`, `\~`,
	` `, `\ `,
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

// vectorToBytes serializes []float32 for the BLOB parameter and the hash
// field (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
