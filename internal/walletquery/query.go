// Package walletquery defines the wallet's query predicate tree and the
// pure recursive rewrite that turns a plaintext predicate into its
// ciphertext equivalent for the storage backend to evaluate.
package walletquery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/keichiri/go-wallet/internal/walletcrypto"
	"github.com/keichiri/go-wallet/internal/walletkeys"
	"github.com/keichiri/go-wallet/internal/wallettags"
	werrors "github.com/keichiri/go-wallet/pkg/errors"
)

// Kind identifies an Operator's comparison or boolean combinator.
type Kind int

const (
	Eq Kind = iota
	Neq
	Gt
	Gte
	Lt
	Lte
	Like
	Regex
	In
	And
	Or
	Not
)

var rangeOnlyKinds = map[Kind]bool{
	Gt: true, Gte: true, Lt: true, Lte: true, Like: true, Regex: true,
}

// TargetValue is the sealed sum type for a comparison's right-hand side:
// Unencrypted on input, Encrypted after Rewrite.
type TargetValue interface {
	isTargetValue()
}

// UnencryptedValue is a plaintext comparison operand, as supplied by the caller.
type UnencryptedValue string

func (UnencryptedValue) isTargetValue() {}

// EncryptedValue is a ciphertext comparison operand, produced by Rewrite.
type EncryptedValue []byte

func (EncryptedValue) isTargetValue() {}

// Operator is the query predicate tree. For leaf kinds (Eq..In), Name
// and Value (and Values, for In) are populated. For And/Or, Children
// holds the subtrees. For Not, Child holds the single subtree.
type Operator struct {
	Kind Kind

	Name   wallettags.TagName
	Value  TargetValue
	Values []TargetValue

	Children []*Operator
	Child    *Operator
}

// NewLeaf builds a leaf Eq/Neq/Gt/Gte/Lt/Lte/Like/Regex node.
func NewLeaf(kind Kind, name wallettags.TagName, value TargetValue) *Operator {
	return &Operator{Kind: kind, Name: name, Value: value}
}

// NewIn builds an In node over a fixed list of target values.
func NewIn(name wallettags.TagName, values []TargetValue) *Operator {
	return &Operator{Kind: In, Name: name, Values: values}
}

// NewAnd builds an And node.
func NewAnd(children ...*Operator) *Operator {
	return &Operator{Kind: And, Children: children}
}

// NewOr builds an Or node.
func NewOr(children ...*Operator) *Operator {
	return &Operator{Kind: Or, Children: children}
}

// NewNot builds a Not node.
func NewNot(child *Operator) *Operator {
	return &Operator{Kind: Not, Child: child}
}

// Rewrite recursively transforms a plaintext predicate tree into its
// ciphertext equivalent. The output has the same tree shape as the
// input; only leaf Name/Value/Values change.
//
// Rejects, at rewrite time, any range/Like/Regex operator applied to an
// Encrypted tag name — such a predicate cannot be evaluated without
// decrypting the tag, which the storage backend must never do.
func Rewrite(op *Operator, keys *walletkeys.Keys) (*Operator, error) {
	if op == nil {
		return nil, nil
	}

	switch op.Kind {
	case And, Or:
		children := make([]*Operator, len(op.Children))
		for i, child := range op.Children {
			rewritten, err := Rewrite(child, keys)
			if err != nil {
				return nil, err
			}
			children[i] = rewritten
		}
		return &Operator{Kind: op.Kind, Children: children}, nil

	case Not:
		child, err := Rewrite(op.Child, keys)
		if err != nil {
			return nil, err
		}
		return &Operator{Kind: Not, Child: child}, nil

	case In:
		if err := rejectEncryptedRange(op.Kind, op.Name); err != nil {
			return nil, err
		}
		name, err := rewriteName(op.Name, keys)
		if err != nil {
			return nil, err
		}
		values := make([]TargetValue, len(op.Values))
		for i, v := range op.Values {
			rv, err := rewriteValue(op.Name, v, keys)
			if err != nil {
				return nil, err
			}
			values[i] = rv
		}
		return &Operator{Kind: In, Name: name, Values: values}, nil

	default: // Eq, Neq, Gt, Gte, Lt, Lte, Like, Regex
		if err := rejectEncryptedRange(op.Kind, op.Name); err != nil {
			return nil, err
		}
		name, err := rewriteName(op.Name, keys)
		if err != nil {
			return nil, err
		}
		value, err := rewriteValue(op.Name, op.Value, keys)
		if err != nil {
			return nil, err
		}
		return &Operator{Kind: op.Kind, Name: name, Value: value}, nil
	}
}

func rejectEncryptedRange(kind Kind, name wallettags.TagName) error {
	if !rangeOnlyKinds[kind] {
		return nil
	}
	if _, ok := name.(wallettags.EncryptedTagName); ok {
		return werrors.InputError("range, Like, and Regex queries are not supported on encrypted tags")
	}
	return nil
}

func rewriteName(name wallettags.TagName, keys *walletkeys.Keys) (wallettags.TagName, error) {
	switch n := name.(type) {
	case wallettags.EncryptedTagName:
		ct, err := walletcrypto.EncryptSearchable(n, keys.TagNameKey, keys.TagsHMACKey)
		if err != nil {
			return nil, err
		}
		return wallettags.EncryptedTagName(ct), nil
	case wallettags.PlainTagName:
		ct, err := walletcrypto.EncryptSearchable(n, keys.TagNameKey, keys.TagsHMACKey)
		if err != nil {
			return nil, err
		}
		return wallettags.PlainTagName(ct), nil
	default:
		return nil, werrors.InputError("query name is already ciphertext")
	}
}

func rewriteValue(name wallettags.TagName, value TargetValue, keys *walletkeys.Keys) (TargetValue, error) {
	unenc, ok := value.(UnencryptedValue)
	if !ok {
		return nil, werrors.InputError("query value is already ciphertext")
	}

	switch name.(type) {
	case wallettags.PlainTagName:
		return unenc, nil
	case wallettags.EncryptedTagName:
		ct, err := walletcrypto.EncryptSearchable([]byte(unenc), keys.TagValueKey, keys.TagsHMACKey)
		if err != nil {
			return nil, err
		}
		return EncryptedValue(ct), nil
	default:
		return nil, werrors.InputError("query name is already ciphertext")
	}
}

// Eval evaluates a rewritten Operator tree directly against a record's
// already-fetched, still-encrypted tag map. The default storage backend
// uses this instead of pushing pattern matching into SQL, since plain
// tag values are already cleartext and encrypted-tag predicates are
// simple byte-equality checks — neither needs the backend to decrypt
// anything.
func Eval(op *Operator, tags map[string]wallettags.TagValue) (bool, error) {
	if op == nil {
		return true, nil
	}

	switch op.Kind {
	case And:
		for _, child := range op.Children {
			ok, err := Eval(child, tags)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case Or:
		for _, child := range op.Children {
			ok, err := Eval(child, tags)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := Eval(op.Child, tags)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case In:
		for _, v := range op.Values {
			leaf := &Operator{Kind: Eq, Name: op.Name, Value: v}
			ok, err := Eval(leaf, tags)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	default:
		return evalLeaf(op, tags)
	}
}

func evalLeaf(op *Operator, tags map[string]wallettags.TagValue) (bool, error) {
	key := tagKey(op.Name)
	actual, present := tags[key]
	if !present {
		return false, nil
	}

	switch op.Kind {
	case Eq, Neq:
		equal, err := valuesEqual(actual, op.Value)
		if err != nil {
			return false, err
		}
		if op.Kind == Neq {
			return !equal, nil
		}
		return equal, nil

	case Gt, Gte, Lt, Lte:
		return compareOrdered(op.Kind, actual, op.Value)

	case Like:
		return likeMatch(actual, op.Value)

	case Regex:
		return regexMatch(actual, op.Value)

	default:
		return false, werrors.InputError("unsupported leaf operator kind")
	}
}

func tagKey(name wallettags.TagName) string {
	switch n := name.(type) {
	case wallettags.EncryptedTagName:
		return string(n)
	case wallettags.PlainTagName:
		return string(n)
	default:
		return ""
	}
}

func valuesEqual(actual wallettags.TagValue, target TargetValue) (bool, error) {
	switch a := actual.(type) {
	case wallettags.PlainTagValue:
		t, ok := target.(UnencryptedValue)
		if !ok {
			return false, werrors.InputError("plain tag compared against ciphertext value")
		}
		return string(a) == string(t), nil
	case wallettags.EncryptedTagValue:
		t, ok := target.(EncryptedValue)
		if !ok {
			return false, werrors.InputError("encrypted tag compared against plaintext value")
		}
		return string(a) == string(t), nil
	default:
		return false, werrors.InputError("unknown tag value variant")
	}
}

func plainOperands(actual wallettags.TagValue, target TargetValue) (string, string, error) {
	a, ok := actual.(wallettags.PlainTagValue)
	if !ok {
		return "", "", werrors.InputError("range queries require a plain tag")
	}
	t, ok := target.(UnencryptedValue)
	if !ok {
		return "", "", werrors.InputError("range queries require an unencrypted target value")
	}
	return string(a), string(t), nil
}

func compareOrdered(kind Kind, actual wallettags.TagValue, target TargetValue) (bool, error) {
	a, t, err := plainOperands(actual, target)
	if err != nil {
		return false, err
	}

	an, aerr := strconv.ParseFloat(a, 64)
	tn, terr := strconv.ParseFloat(t, 64)
	var cmp int
	if aerr == nil && terr == nil {
		cmp = floatCompare(an, tn)
	} else {
		cmp = strings.Compare(a, t)
	}

	switch kind {
	case Gt:
		return cmp > 0, nil
	case Gte:
		return cmp >= 0, nil
	case Lt:
		return cmp < 0, nil
	case Lte:
		return cmp <= 0, nil
	default:
		return false, werrors.InputError("not a range operator")
	}
}

func floatCompare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func likeMatch(actual wallettags.TagValue, target TargetValue) (bool, error) {
	a, t, err := plainOperands(actual, target)
	if err != nil {
		return false, err
	}
	pattern := "^" + regexp.QuoteMeta(t)
	pattern = strings.ReplaceAll(pattern, "%", ".*")
	pattern = strings.ReplaceAll(pattern, "_", ".")
	pattern += "$"
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, werrors.InputError("invalid Like pattern: " + err.Error())
	}
	return re.MatchString(a), nil
}

func regexMatch(actual wallettags.TagValue, target TargetValue) (bool, error) {
	a, t, err := plainOperands(actual, target)
	if err != nil {
		return false, err
	}
	re, err := regexp.Compile(t)
	if err != nil {
		return false, werrors.InputError("invalid regex: " + err.Error())
	}
	return re.MatchString(a), nil
}
