package subdoc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Opcode identifies the sub-document operation to execute, independent of
// the wire opcode that requested it (traits map wire opcodes to these).
type Opcode int

const (
	OpGet Opcode = iota
	OpExists
	OpDictAdd
	OpDictUpsert
	OpDelete
	OpReplace
	OpArrayPushLast
	OpArrayPushFirst
	OpArrayInsert
	OpArrayAddUnique
	OpCounter
)

// Result is the outcome of executing one path operation against a document.
//
// On success, Get populates Value with the located JSON-encoded value
// (Exists reports only a status); a mutator populates Fragments with the
// pieces that, concatenated in order, form the new document. The
// specification's contract allows fragments to alias input buffers; this
// implementation always returns one owned fragment (the whole re-encoded
// document), which the executor copies verbatim — simpler than true
// fragment aliasing and adequate for the sizes sub-document values reach
// in practice (see DESIGN.md).
type Result struct {
	Status    Status
	Value     []byte
	Fragments [][]byte
}

// FragmentLen sums the length of all fragments, as the executor needs to
// size its output item allocation.
func (r Result) FragmentLen() int {
	n := 0
	for _, f := range r.Fragments {
		n += len(f)
	}
	return n
}

// Execute applies one path operation to a JSON document buffer, per the
// contract in SPEC_FULL.md §4.3 / spec.md §4.3.
func Execute(opcode Opcode, mkdirP bool, doc []byte, path string, value []byte) Result {
	tokens, st := parsePath(path)
	if st != StatusSuccess {
		return Result{Status: st}
	}

	var root interface{}
	if err := json.Unmarshal(doc, &root); err != nil {
		return Result{Status: StatusPathMismatch}
	}

	if len(tokens) == 0 {
		switch opcode {
		case OpArrayPushLast, OpArrayPushFirst, OpArrayAddUnique, OpCounter:
			return execRootOp(opcode, root, value)
		}
	}

	switch opcode {
	case OpGet:
		return execGet(root, tokens)
	case OpExists:
		return execExists(root, tokens)
	case OpDictAdd:
		return execDictInsert(root, tokens, value, mkdirP, false)
	case OpDictUpsert:
		return execDictInsert(root, tokens, value, mkdirP, true)
	case OpDelete:
		return execDelete(root, tokens)
	case OpReplace:
		return execReplace(root, tokens, value)
	case OpArrayPushLast:
		return execArrayPush(root, tokens, value, mkdirP, true)
	case OpArrayPushFirst:
		return execArrayPush(root, tokens, value, mkdirP, false)
	case OpArrayInsert:
		return execArrayInsert(root, tokens, value)
	case OpArrayAddUnique:
		return execArrayAddUnique(root, tokens, value, mkdirP)
	case OpCounter:
		return execCounter(root, tokens, value, mkdirP)
	default:
		return Result{Status: StatusPathEinval}
	}
}

// execRootOp handles the empty-path case for opcodes whose traits set
// AllowEmptyPath: the operation targets the document root directly rather
// than a key within a parent container.
func execRootOp(opcode Opcode, root interface{}, rawValue []byte) Result {
	val, st := decodeValue(rawValue)
	if st != StatusSuccess {
		return Result{Status: st}
	}

	switch opcode {
	case OpArrayPushLast, OpArrayPushFirst, OpArrayAddUnique:
		arr, ok := root.([]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if opcode == OpArrayAddUnique {
			if _, isContainer := val.(map[string]interface{}); isContainer {
				return Result{Status: StatusValueCantInsert}
			}
			if _, isContainer := val.([]interface{}); isContainer {
				return Result{Status: StatusValueCantInsert}
			}
			valBytes, _ := json.Marshal(val)
			for _, existing := range arr {
				eb, _ := json.Marshal(existing)
				if string(eb) == string(valBytes) {
					return Result{Status: StatusDocEExists}
				}
			}
			return finalize(interface{}(append(append([]interface{}{}, arr...), val)))
		}
		if opcode == OpArrayPushLast {
			return finalize(interface{}(append(append([]interface{}{}, arr...), val)))
		}
		return finalize(interface{}(append([]interface{}{val}, arr...)))

	case OpCounter:
		delta, err := strconv.ParseInt(string(rawValue), 10, 64)
		if err != nil {
			return Result{Status: StatusDeltaE2Big}
		}
		n, ok := root.(float64)
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		next := int64(n) + delta
		res := finalize(interface{}(next))
		if res.Status == StatusSuccess {
			res.Value = []byte(strconv.FormatInt(next, 10))
		}
		return res
	default:
		return Result{Status: StatusPathEinval}
	}
}

// navigate walks tokens against root, returning the container holding the
// final component and that component descriptor, without mutating
// anything. Used by read-only operations.
func navigate(root interface{}, tokens []token) (interface{}, Status) {
	cur := root
	for _, t := range tokens {
		switch {
		case t.isIndex:
			arr, ok := cur.([]interface{})
			if !ok {
				return nil, StatusPathMismatch
			}
			if t.index < 0 || t.index >= len(arr) {
				return nil, StatusPathEnoent
			}
			cur = arr[t.index]
		case t.isAppend:
			return nil, StatusPathEinval
		default:
			obj, ok := cur.(map[string]interface{})
			if !ok {
				return nil, StatusPathMismatch
			}
			v, exists := obj[t.key]
			if !exists {
				return nil, StatusPathEnoent
			}
			cur = v
		}
	}
	return cur, StatusSuccess
}

func execGet(root interface{}, tokens []token) Result {
	v, st := navigate(root, tokens)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Result{Status: StatusPathMismatch}
	}
	return Result{Status: StatusSuccess, Value: b}
}

func execExists(root interface{}, tokens []token) Result {
	_, st := navigate(root, tokens)
	return Result{Status: st}
}

// locateParent walks all but the last token, returning the parent
// container and the last token (the component to operate on within it).
// When mkdirP is true, missing intermediate dict containers are created.
func locateParent(root *interface{}, tokens []token, mkdirP bool) (interface{}, token, Status) {
	if len(tokens) == 0 {
		return nil, token{}, StatusPathEinval
	}
	last := tokens[len(tokens)-1]
	parentTokens := tokens[:len(tokens)-1]

	curPtr := root
	for _, t := range parentTokens {
		switch {
		case t.isIndex:
			arr, ok := (*curPtr).([]interface{})
			if !ok {
				return nil, token{}, StatusPathMismatch
			}
			if t.index < 0 || t.index >= len(arr) {
				return nil, token{}, StatusPathEnoent
			}
			curPtr = &arr[t.index]
		default:
			obj, ok := (*curPtr).(map[string]interface{})
			if !ok {
				return nil, token{}, StatusPathMismatch
			}
			v, exists := obj[t.key]
			if !exists {
				if !mkdirP {
					return nil, token{}, StatusPathEnoent
				}
				newObj := map[string]interface{}{}
				obj[t.key] = newObj
				v = newObj
			}
			next := v
			curPtr = &next
		}
	}
	return *curPtr, last, StatusSuccess
}

func decodeValue(raw []byte) (interface{}, Status) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, StatusValueCantInsert
	}
	return v, StatusSuccess
}

func execDictInsert(root interface{}, tokens []token, rawValue []byte, mkdirP, upsert bool) Result {
	parent, last, st := locateParent(&root, tokens, mkdirP)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	if last.isIndex || last.isAppend {
		return Result{Status: StatusPathMismatch}
	}
	obj, ok := parent.(map[string]interface{})
	if !ok {
		return Result{Status: StatusPathMismatch}
	}
	if _, exists := obj[last.key]; exists && !upsert {
		return Result{Status: StatusDocEExists}
	}
	val, st := decodeValue(rawValue)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	obj[last.key] = val
	return finalize(root)
}

func execDelete(root interface{}, tokens []token) Result {
	parent, last, st := locateParent(&root, tokens, false)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	switch {
	case last.isIndex:
		arr, ok := parent.([]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if last.index < 0 || last.index >= len(arr) {
			return Result{Status: StatusPathEnoent}
		}
		// Deletion requires rewriting into the grandparent slot; since Go
		// slices can't shrink in place through an interface{} alias, we
		// re-navigate one level up via a second pass using JSON re-encode.
		return execDeleteArrayIndex(root, tokens)
	default:
		obj, ok := parent.(map[string]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if _, exists := obj[last.key]; !exists {
			return Result{Status: StatusPathEnoent}
		}
		delete(obj, last.key)
		return finalize(root)
	}
}

// execDeleteArrayIndex handles array-element deletion by rebuilding the
// containing array, since removing an element changes its length and a
// plain interface{} alias can't express that back into the parent slot.
func execDeleteArrayIndex(root interface{}, tokens []token) Result {
	parentTokens := tokens[:len(tokens)-1]
	last := tokens[len(tokens)-1]

	if len(parentTokens) == 0 {
		arr, ok := root.([]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if last.index < 0 || last.index >= len(arr) {
			return Result{Status: StatusPathEnoent}
		}
		newArr := append(append([]interface{}{}, arr[:last.index]...), arr[last.index+1:]...)
		return finalize(interface{}(newArr))
	}

	grandParent, arrToken, st := locateParent(&root, parentTokens, false)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	_, arr, ok := fetchArray(grandParent, arrToken)
	if !ok {
		return Result{Status: StatusPathMismatch}
	}
	if last.index < 0 || last.index >= len(arr) {
		return Result{Status: StatusPathEnoent}
	}
	newArr := append(append([]interface{}{}, arr[:last.index]...), arr[last.index+1:]...)
	if err := storeBack(grandParent, arrToken, newArr); err != nil {
		return Result{Status: StatusPathMismatch}
	}
	return finalize(root)
}

func fetchArray(container interface{}, t token) (interface{}, []interface{}, bool) {
	switch {
	case t.isIndex:
		arr, ok := container.([]interface{})
		if !ok || t.index < 0 || t.index >= len(arr) {
			return nil, nil, false
		}
		sub, ok := arr[t.index].([]interface{})
		return arr[t.index], sub, ok
	default:
		obj, ok := container.(map[string]interface{})
		if !ok {
			return nil, nil, false
		}
		v, exists := obj[t.key]
		if !exists {
			return nil, nil, false
		}
		sub, ok := v.([]interface{})
		return v, sub, ok
	}
}

func storeBack(container interface{}, t token, newVal interface{}) error {
	switch {
	case t.isIndex:
		arr, ok := container.([]interface{})
		if !ok || t.index < 0 || t.index >= len(arr) {
			return fmt.Errorf("subdoc: invalid array store target")
		}
		arr[t.index] = newVal
		return nil
	default:
		obj, ok := container.(map[string]interface{})
		if !ok {
			return fmt.Errorf("subdoc: invalid dict store target")
		}
		obj[t.key] = newVal
		return nil
	}
}

func execReplace(root interface{}, tokens []token, rawValue []byte) Result {
	parent, last, st := locateParent(&root, tokens, false)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	val, st := decodeValue(rawValue)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	switch {
	case last.isIndex:
		arr, ok := parent.([]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if last.index < 0 || last.index >= len(arr) {
			return Result{Status: StatusPathEnoent}
		}
		arr[last.index] = val
	default:
		obj, ok := parent.(map[string]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if _, exists := obj[last.key]; !exists {
			return Result{Status: StatusPathEnoent}
		}
		obj[last.key] = val
	}
	return finalize(root)
}

func execArrayPush(root interface{}, tokens []token, rawValue []byte, mkdirP, last bool) Result {
	parent, lastTok, st := locateParentForArray(&root, tokens, mkdirP)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	val, st := decodeValue(rawValue)
	if st != StatusSuccess {
		return Result{Status: st}
	}

	arr, ok := resolveArraySlot(parent, lastTok, mkdirP)
	if !ok {
		return Result{Status: StatusPathMismatch}
	}
	var newArr []interface{}
	if last {
		newArr = append(append([]interface{}{}, arr...), val)
	} else {
		newArr = append([]interface{}{val}, arr...)
	}
	if err := storeArraySlot(parent, lastTok, newArr); err != nil {
		return Result{Status: StatusPathMismatch}
	}
	return finalize(root)
}

// execArrayInsert inserts a value at the array index named by the path's
// final "[n]" component, shifting existing elements from that index
// onward to the right. The path's parent components must resolve to the
// array itself; MKDIR_P is not honored for ARRAY_INSERT (traits disallow
// it, matching the original's validator).
func execArrayInsert(root interface{}, tokens []token, rawValue []byte) Result {
	if len(tokens) == 0 {
		return Result{Status: StatusPathEinval}
	}
	last := tokens[len(tokens)-1]
	if !last.isIndex {
		return Result{Status: StatusPathMismatch}
	}
	parentTokens := tokens[:len(tokens)-1]

	val, st := decodeValue(rawValue)
	if st != StatusSuccess {
		return Result{Status: st}
	}

	if len(parentTokens) == 0 {
		arr, ok := root.([]interface{})
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		if last.index < 0 || last.index > len(arr) {
			return Result{Status: StatusPathEnoent}
		}
		newArr := insertAt(arr, last.index, val)
		return finalize(interface{}(newArr))
	}

	grandParent, arrTok, st := locateParent(&root, parentTokens, false)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	_, arr, ok := fetchArray(grandParent, arrTok)
	if !ok {
		return Result{Status: StatusPathMismatch}
	}
	if last.index < 0 || last.index > len(arr) {
		return Result{Status: StatusPathEnoent}
	}
	newArr := insertAt(arr, last.index, val)
	if err := storeBack(grandParent, arrTok, newArr); err != nil {
		return Result{Status: StatusPathMismatch}
	}
	return finalize(root)
}

func insertAt(arr []interface{}, idx int, val interface{}) []interface{} {
	out := make([]interface{}, 0, len(arr)+1)
	out = append(out, arr[:idx]...)
	out = append(out, val)
	out = append(out, arr[idx:]...)
	return out
}

func execArrayAddUnique(root interface{}, tokens []token, rawValue []byte, mkdirP bool) Result {
	parent, lastTok, st := locateParentForArray(&root, tokens, mkdirP)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	val, st := decodeValue(rawValue)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	if _, isContainer := val.(map[string]interface{}); isContainer {
		return Result{Status: StatusValueCantInsert}
	}
	if _, isContainer := val.([]interface{}); isContainer {
		return Result{Status: StatusValueCantInsert}
	}

	arr, ok := resolveArraySlot(parent, lastTok, mkdirP)
	if !ok {
		return Result{Status: StatusPathMismatch}
	}
	valBytes, _ := json.Marshal(val)
	for _, existing := range arr {
		eb, _ := json.Marshal(existing)
		if string(eb) == string(valBytes) {
			return Result{Status: StatusDocEExists}
		}
	}
	newArr := append(append([]interface{}{}, arr...), val)
	if err := storeArraySlot(parent, lastTok, newArr); err != nil {
		return Result{Status: StatusPathMismatch}
	}
	return finalize(root)
}

func execCounter(root interface{}, tokens []token, rawValue []byte, mkdirP bool) Result {
	delta, err := strconv.ParseInt(string(rawValue), 10, 64)
	if err != nil {
		return Result{Status: StatusDeltaE2Big}
	}

	parent, last, st := locateParent(&root, tokens, mkdirP)
	if st != StatusSuccess {
		return Result{Status: st}
	}
	if last.isIndex {
		return Result{Status: StatusPathMismatch}
	}
	obj, ok := parent.(map[string]interface{})
	if !ok {
		return Result{Status: StatusPathMismatch}
	}

	cur := int64(0)
	if existing, exists := obj[last.key]; exists {
		n, ok := existing.(float64)
		if !ok {
			return Result{Status: StatusPathMismatch}
		}
		cur = int64(n)
	}
	next := cur + delta
	obj[last.key] = next

	res := finalize(root)
	if res.Status != StatusSuccess {
		return res
	}
	res.Value = []byte(strconv.FormatInt(next, 10))
	return res
}

// locateParentForArray is like locateParent but when mkdirP is set and the
// final slot is absent, leaves container creation to resolveArraySlot
// (which knows to create an array, not a dict).
func locateParentForArray(root *interface{}, tokens []token, mkdirP bool) (interface{}, token, Status) {
	if len(tokens) == 0 {
		return nil, token{}, StatusPathEinval
	}
	last := tokens[len(tokens)-1]
	parentTokens := tokens[:len(tokens)-1]
	parent, _, st := locateParentShallow(root, parentTokens, mkdirP)
	if st != StatusSuccess {
		return nil, token{}, st
	}
	return parent, last, StatusSuccess
}

func locateParentShallow(root *interface{}, tokens []token, mkdirP bool) (interface{}, token, Status) {
	curPtr := root
	var lastTok token
	for _, t := range tokens {
		lastTok = t
		switch {
		case t.isIndex:
			arr, ok := (*curPtr).([]interface{})
			if !ok {
				return nil, token{}, StatusPathMismatch
			}
			if t.index < 0 || t.index >= len(arr) {
				return nil, token{}, StatusPathEnoent
			}
			curPtr = &arr[t.index]
		default:
			obj, ok := (*curPtr).(map[string]interface{})
			if !ok {
				return nil, token{}, StatusPathMismatch
			}
			v, exists := obj[t.key]
			if !exists {
				if !mkdirP {
					return nil, token{}, StatusPathEnoent
				}
				newObj := map[string]interface{}{}
				obj[t.key] = newObj
				v = newObj
			}
			next := v
			curPtr = &next
		}
	}
	return *curPtr, lastTok, StatusSuccess
}

func resolveArraySlot(parent interface{}, t token, mkdirP bool) ([]interface{}, bool) {
	switch {
	case t.isIndex:
		arr, ok := parent.([]interface{})
		if !ok || t.index < 0 || t.index >= len(arr) {
			return nil, false
		}
		sub, ok := arr[t.index].([]interface{})
		if !ok {
			if mkdirP && arr[t.index] == nil {
				return []interface{}{}, true
			}
			return nil, false
		}
		return sub, true
	default:
		obj, ok := parent.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, exists := obj[t.key]
		if !exists {
			if mkdirP {
				return []interface{}{}, true
			}
			return nil, false
		}
		sub, ok := v.([]interface{})
		return sub, ok
	}
}

func storeArraySlot(parent interface{}, t token, arr []interface{}) error {
	return storeBack(parent, t, arr)
}

func finalize(root interface{}) Result {
	b, err := json.Marshal(root)
	if err != nil {
		return Result{Status: StatusPathMismatch}
	}
	return Result{Status: StatusSuccess, Fragments: [][]byte{b}}
}
