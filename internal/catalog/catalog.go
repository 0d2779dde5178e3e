package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/stockpile/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Definition is a catalog entry for a purchasable item.
type Definition struct {
	Def       int32
	Name      string
	Price     uint64
	BasePrice uint64
}

// Grant is an item instance to create when the catalog is seeded.
type Grant struct {
	Def      int32
	Quantity uint16
	Flags    uint16
}

// Catalog is a compiled catalog file.
type Catalog struct {
	Definitions []Definition
	Grants      []Grant
}

// CompileError reports a catalog problem at a source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and compiles the catalog at path.
func LoadFile(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Compile(path, src)
}

// Compile unifies src with the catalog schema and extracts its entries.
// filename is used only for error positions.
func Compile(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	defs, err := parseDefinitions(unified.LookupPath(cue.ParsePath("definitions")))
	if err != nil {
		return nil, err
	}

	grants, err := parseGrants(unified.LookupPath(cue.ParsePath("grants")), defs)
	if err != nil {
		return nil, err
	}

	return &Catalog{Definitions: defs, Grants: grants}, nil
}

func parseDefinitions(v cue.Value) ([]Definition, error) {
	defs := []Definition{}
	if !v.Exists() {
		return defs, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[int32]bool)
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		field := fmt.Sprintf("definitions[%d]", i)

		def, err := lookupInt(ev, "def")
		if err != nil {
			return nil, err
		}
		name, err := ev.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		price, err := lookupInt(ev, "price")
		if err != nil {
			return nil, err
		}
		basePrice, err := lookupInt(ev, "base_price")
		if err != nil {
			return nil, err
		}

		d := int32(def)
		if seen[d] {
			return nil, &CompileError{
				Field:   field + ".def",
				Message: fmt.Sprintf("duplicate definition %d", d),
				Pos:     ev.LookupPath(cue.ParsePath("def")).Pos(),
			}
		}
		seen[d] = true

		defs = append(defs, Definition{
			Def:       d,
			Name:      norm.NFC.String(name),
			Price:     uint64(price),
			BasePrice: uint64(basePrice),
		})
	}
	return defs, nil
}

func parseGrants(v cue.Value, defs []Definition) ([]Grant, error) {
	grants := []Grant{}
	if !v.Exists() {
		return grants, nil
	}

	known := make(map[int32]bool, len(defs))
	for _, d := range defs {
		known[d.Def] = true
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		ev := iter.Value()

		def, err := lookupInt(ev, "def")
		if err != nil {
			return nil, err
		}
		if !known[int32(def)] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("grants[%d].def", i),
				Message: fmt.Sprintf("definition %d is not declared in this catalog", def),
				Pos:     ev.LookupPath(cue.ParsePath("def")).Pos(),
			}
		}
		qty, err := lookupInt(ev, "quantity")
		if err != nil {
			return nil, err
		}
		flags, err := lookupInt(ev, "flags")
		if err != nil {
			return nil, err
		}

		grants = append(grants, Grant{
			Def:      int32(def),
			Quantity: uint16(qty),
			Flags:    uint16(flags),
		})
	}
	return grants, nil
}

func lookupInt(v cue.Value, field string) (int64, error) {
	n, err := v.LookupPath(cue.ParsePath(field)).Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Definitions int `json:"definitions"`
	Granted     int `json:"granted"`
}

// Seed upserts every definition, then grants every item.
// Definitions are written first so grants can reference them.
func Seed(ctx context.Context, st *store.Store, c *Catalog) (SeedResult, error) {
	var res SeedResult
	for _, d := range c.Definitions {
		err := st.UpsertDefinition(ctx, store.Definition{
			Def:       d.Def,
			Name:      d.Name,
			Price:     d.Price,
			BasePrice: d.BasePrice,
		})
		if err != nil {
			return res, fmt.Errorf("seed: %w", err)
		}
		res.Definitions++
	}
	for _, g := range c.Grants {
		if _, err := st.GrantItem(ctx, g.Def, g.Quantity, g.Flags); err != nil {
			return res, fmt.Errorf("seed: %w", err)
		}
		res.Granted++
	}
	return res, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
