/*
Package operation implements the registry of conversion and edit operations.

	+--------------+      +-------------+      +---------------+
	|  ID (string) | ---> |  Registry   | ---> |  Leaf + Spec  |
	+--------------+      +------+------+      +---------------+
	                             |
	                      +------+------+
	                      |  OptionBag  |
	                      | (validated) |
	                      +-------------+

🎯 Purpose:
- Closed enumeration of every supported transformation
- Static table built once at startup, never mutated afterwards
- Typed parsing of the option strings an operation declares

⚡ Key Responsibilities:
- Resolve an ID to its leaf, failing with ErrUnknownOperation
- Report required option keys
- Turn raw option strings into an OptionBag, failing with a *ValidationError

🔍 Example:

	reg, err := operation.NewDefaultRegistry(leaf.NewToolchain(leaf.DefaultTools()))
	opts, err := reg.ParseOptions(operation.TrimVideo, map[string]string{
		"start_time": "1.5",
		"end_time":   "9",
	})
	run, err := reg.Resolve(operation.TrimVideo)
	err = run(ctx, []string{"in.mp4"}, "in_converted.mp4", opts)

Unknown option keys are ignored. Values are checked for type only.
*/
package operation
