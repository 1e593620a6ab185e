package a

type Alias interface{} // want "replace interface\\{\\} with any"

type Good any

func param(v interface{}) { // want "replace interface\\{\\} with any"
	_ = v
}

func ret() interface{} { // want "replace interface\\{\\} with any"
	return nil
}

type payload struct {
	Raw interface{} // want "replace interface\\{\\} with any"
	OK  any
}

var attrs map[string]interface{} // want "replace interface\\{\\} with any"

var rows []interface{} // want "replace interface\\{\\} with any"

func pair(a interface{}, b interface{}) { // want "replace interface\\{\\} with any" "replace interface\\{\\} with any"
	_, _ = a, b
}

func assertion() {
	var v any
	_ = v.(string)
}

func nolintGeneral() {
	//nolint
	var v interface{}
	_ = v
}

func nolintSpecific() {
	var v interface{} //nolint:nointerface
	_ = v
}

func nolintOther() {
	var v interface{} //nolint:otherlinter // want "replace interface\\{\\} with any"
	_ = v
}

// Non-empty interfaces have no alias and are never flagged.
type Repository interface {
	Load(id int64) (string, error)
	Store(id int64, v string) error
}
