package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
)

// loader decodes a raw (inflated) object of one magic kind.
type loader func(raw []byte) (Codable, error)

// handlers is the magic -> loader dispatch table: a tagged sum type
// ("Codable") with a discriminator (Kind) and a handler table keyed by
// magic, rather than virtual dispatch.
var handlers = map[objio.Magic]loader{
	objio.MagicReport:           func(raw []byte) (Codable, error) { return DecodeReport(raw) },
	objio.MagicBuild:            func(raw []byte) (Codable, error) { return DecodeBuild(raw) },
	objio.MagicFiles:            func(raw []byte) (Codable, error) { return DecodeFiles(raw) },
	objio.MagicLineCoverage:     func(raw []byte) (Codable, error) { return DecodeLineCoverage(raw) },
	objio.MagicFunctionCoverage: func(raw []byte) (Codable, error) { return DecodeFunctionCoverage(raw) },
}

// Decode inspects raw's header and dispatches to the matching kind's
// decoder. raw is the fully inflated object (the caller has already
// undone the zlib/SHA-1 layer via package objio).
func Decode(raw []byte) (Codable, error) {
	const op = "object.Decode"
	h, err := objio.DecodeHeader(raw)
	if err != nil {
		return nil, errc.New(op, errc.BadSyntax, err)
	}
	fn, ok := handlers[h.Magic]
	if !ok {
		return nil, errc.New(op, errc.UnknownMagic, fmt.Errorf("object: magic %q not registered", h.Magic))
	}
	return fn(raw)
}

// AsReport asserts obj is a Report, returning wrong_object_type otherwise.
func AsReport(obj Codable) (Report, error) {
	r, ok := obj.(Report)
	if !ok {
		return Report{}, errc.New("object.AsReport", errc.WrongObjectType, fmt.Errorf("object: got %s", obj.Kind()))
	}
	return r, nil
}

// AsBuild asserts obj is a Build, returning wrong_object_type otherwise.
func AsBuild(obj Codable) (Build, error) {
	b, ok := obj.(Build)
	if !ok {
		return Build{}, errc.New("object.AsBuild", errc.WrongObjectType, fmt.Errorf("object: got %s", obj.Kind()))
	}
	return b, nil
}

// AsFiles asserts obj is a Files, returning wrong_object_type otherwise.
func AsFiles(obj Codable) (Files, error) {
	f, ok := obj.(Files)
	if !ok {
		return Files{}, errc.New("object.AsFiles", errc.WrongObjectType, fmt.Errorf("object: got %s", obj.Kind()))
	}
	return f, nil
}

// AsLineCoverage asserts obj is a LineCoverage, returning wrong_object_type
// otherwise.
func AsLineCoverage(obj Codable) (LineCoverage, error) {
	lc, ok := obj.(LineCoverage)
	if !ok {
		return LineCoverage{}, errc.New("object.AsLineCoverage", errc.WrongObjectType, fmt.Errorf("object: got %s", obj.Kind()))
	}
	return lc, nil
}

// AsFunctionCoverage asserts obj is a FunctionCoverage, returning
// wrong_object_type otherwise.
func AsFunctionCoverage(obj Codable) (FunctionCoverage, error) {
	fc, ok := obj.(FunctionCoverage)
	if !ok {
		return FunctionCoverage{}, errc.New("object.AsFunctionCoverage", errc.WrongObjectType, fmt.Errorf("object: got %s", obj.Kind()))
	}
	return fc, nil
}
