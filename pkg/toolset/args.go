package toolset

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
