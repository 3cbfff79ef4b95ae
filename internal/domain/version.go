// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	versionPrefix    = 'M'
	versionSeparator = '_'
	timestampLayout  = "20060102150405"

	// minimalVersion は最短の正しいバージョン文字列。
	minimalVersion = "M20010203040506_N"
)

// Version はマイグレーションを一意に識別し、順序付けるバージョン。
// タイムスタンプで比較し、同じ場合は名前で比較する。
type Version struct {
	Timestamp time.Time
	Name      string
}

// DefaultVersion は「マイグレーションが一度も適用されていない」ことを表す。
var DefaultVersion = Version{Timestamp: time.Time{}, Name: ""}

// NewVersion はタイムスタンプと名前からVersionを生成する。
// タイムスタンプはUTC・秒精度に正規化される。
func NewVersion(timestamp time.Time, name string) Version {
	return Version{
		Timestamp: timestamp.UTC().Truncate(time.Second),
		Name:      name,
	}
}

type versionComponent struct {
	name     string
	start    int
	length   int
	min, max int
}

var versionComponents = []versionComponent{
	{"year", 1, 4, 2000, 9999},
	{"month", 5, 2, 1, 12},
	{"day", 7, 2, 1, 31},
	{"hour", 9, 2, 0, 23},
	{"minute", 11, 2, 0, 59},
	{"second", 13, 2, 0, 59},
}

// ParseVersion は MyyyyMMddHHmmss_Name 形式の文字列をVersionに変換する。
func ParseVersion(text string) (Version, error) {
	if text == "" {
		return Version{}, &VersionFormatError{Input: text, Reason: ReasonEmpty}
	}
	if len(text) < len(minimalVersion) || text[len(minimalVersion)-2] != versionSeparator {
		return Version{}, &VersionFormatError{Input: text, Reason: ReasonFormat}
	}
	if text[0] != versionPrefix {
		return Version{}, &VersionFormatError{Input: text, Reason: ReasonPrefix}
	}

	values := make([]int, len(versionComponents))
	for i, c := range versionComponents {
		raw := text[c.start : c.start+c.length]
		n, ok := parseDigits(raw)
		if !ok || n < c.min || n > c.max {
			return Version{}, &VersionFormatError{Input: text, Reason: ReasonComponent, Component: c.name, Value: raw}
		}
		values[i] = n
	}

	year, month, day := values[0], time.Month(values[1]), values[2]
	if day > daysIn(year, month) {
		return Version{}, &VersionFormatError{Input: text, Reason: ReasonComponent, Component: "day", Value: text[7:9]}
	}

	return Version{
		Timestamp: time.Date(year, month, day, values[3], values[4], values[5], 0, time.UTC),
		Name:      text[len(minimalVersion)-1:],
	}, nil
}

// MustParseVersion はParseVersionと同じだが、失敗時にpanicする。
// マイグレーション定義での利用を想定している。
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

func parseDigits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// String は正規のテキスト表現を返す。ParseVersionの逆変換になる。
func (v Version) String() string {
	var b strings.Builder
	b.Grow(len(minimalVersion) + len(v.Name))
	b.WriteByte(versionPrefix)
	b.WriteString(v.Timestamp.UTC().Format(timestampLayout))
	b.WriteByte(versionSeparator)
	b.WriteString(v.Name)
	return b.String()
}

// Compare は v < other なら -1、等しければ 0、v > other なら 1 を返す。
func (v Version) Compare(other Version) int {
	if c := v.Timestamp.Compare(other.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(v.Name, other.Name)
}

// Equal はタイムスタンプと名前の両方が等しいかを返す。
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Less は v が other より前かを返す。
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// IsDefault はDefaultVersionかを返す。
func (v Version) IsDefault() bool {
	return v.Equal(DefaultVersion)
}

// MarshalBSONValue はバージョンを正規の文字列として保存する。
func (v Version) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(v.String())
}

// UnmarshalBSONValue は文字列として保存されたバージョンを復元する。
func (v *Version) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("%w: cannot decode BSON %s as a version", ErrInvalidVersion, t)
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalText はJSONやCLIフラグ用のテキスト表現を返す。
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText はテキスト表現からバージョンを復元する。
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
