package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ValidateWGSL parses, lowers and validates a WGSL module without a device
func ValidateWGSL(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fmt.Errorf("lowering: %w", err)
	}
	problems, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if len(problems) > 0 {
		errs := make([]error, len(problems))
		for i := range problems {
			errs[i] = problems[i]
		}
		return errors.Join(errs...)
	}
	return nil
}

// EntryPoint is a shader entry point as declared in WGSL.
// Workgroup is zero for render stages.
type EntryPoint struct {
	Name      string
	Workgroup [3]uint32
}

// EntryPoints lists the entry points a WGSL module declares
func EntryPoints(source string) ([]EntryPoint, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("lowering: %w", err)
	}
	eps := make([]EntryPoint, 0, len(module.EntryPoints))
	for _, ep := range module.EntryPoints {
		eps = append(eps, EntryPoint{Name: ep.Name, Workgroup: ep.Workgroup})
	}
	return eps, nil
}
