package system_test

import (
	"context"
	"fmt"

	"github.com/ttvdevil/ttvdevil/pkg/system"
	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

func ExampleParse() {
	src := `
name: warm-neptune
duration: 40
search_step: 0.25
tolerance: 1.0e-6
star: {mass: 0.8}
planets:
  - name: b
    mass: 0.00005
    elements: {period: 9.5, inc: 90, t0: 3.25}
`
	cfg, err := system.Parse([]byte(src), system.FormatYAML, "warm-neptune.yaml")
	if err != nil {
		fmt.Println(err)
		return
	}

	bodies, err := cfg.Bodies()
	if err != nil {
		fmt.Println(err)
		return
	}
	opts, err := cfg.Options()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := transit.Compute(context.Background(), bodies, opts); err != nil {
		fmt.Println(err)
		return
	}
	for _, t := range bodies[1].TransitTimes {
		fmt.Printf("%.3f\n", t)
	}
	// Output:
	// 3.250
	// 12.750
	// 22.250
	// 31.750
}

func ExampleLoadError() {
	_, err := system.Parse([]byte("name: empty\nduration: 10\nstar: {mass: 1}\n"), system.FormatYAML, "empty.yaml")
	fmt.Println(err)
	// Output:
	// invalid system empty.yaml: planets: is required
}
