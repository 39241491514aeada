package documents

// Document is a file the backend has accepted. Both fields are assigned by
// the backend and never change afterwards.
type Document struct {
	ID       string `json:"document_id"`
	Filename string `json:"filename"`
}

// IndexOf returns the position of id in docs, or -1
func IndexOf(docs []Document, id string) int {
	for i, doc := range docs {
		if doc.ID == id {
			return i
		}
	}
	return -1
}
