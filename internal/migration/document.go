package migration

import "go.mongodb.org/mongo-driver/bson"

// IDField はドキュメントの識別子フィールド名。
const IDField = "_id"

// MissingDocumentID は _id を持たないドキュメントの識別子として使う値。
const MissingDocumentID = "cannot find id"

// DocumentID はドキュメントの _id を返す。存在しない場合は MissingDocumentID を返す。
func DocumentID(doc bson.D) interface{} {
	if id, ok := Lookup(doc, IDField); ok {
		return id
	}
	return MissingDocumentID
}

// Lookup はトップレベルのフィールド値を返す。
func Lookup(doc bson.D, key string) (interface{}, bool) {
	if i := indexOf(doc, key); i >= 0 {
		return doc[i].Value, true
	}
	return nil, false
}

// SetField はフィールドを位置を保ったまま上書きする。存在しない場合は末尾に追加する。
func SetField(doc *bson.D, key string, value interface{}) {
	if i := indexOf(*doc, key); i >= 0 {
		(*doc)[i].Value = value
		return
	}
	*doc = append(*doc, bson.E{Key: key, Value: value})
}

// RenameField はフィールド名を変更し、変更したかを返す。
// フィールドの位置は保たれる。変更先のフィールドが既に存在する場合は上書きする。
func RenameField(doc *bson.D, from, to string) bool {
	if doc == nil || from == to {
		return false
	}
	d := *doc
	idx := indexOf(d, from)
	if idx < 0 {
		return false
	}
	if j := indexOf(d, to); j >= 0 {
		d = append(d[:j], d[j+1:]...)
		if j < idx {
			idx--
		}
	}
	d[idx].Key = to
	*doc = d
	return true
}

func indexOf(doc bson.D, key string) int {
	for i, e := range doc {
		if e.Key == key {
			return i
		}
	}
	return -1
}
