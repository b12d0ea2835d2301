package config

// GetDefaultTestPointsTemplate returns the default template for test point generation.
// Fields: .Requirement, .Count, .BusinessType
func GetDefaultTestPointsTemplate() string {
	return `你是一名资深测试工程师。请根据以下需求，提炼 {{.Count}} 个测试点。
业务类型：{{.BusinessType}}

需求描述：
{{.Requirement}}

每个测试点必须包含 test_point_id、title、description、business_type、priority（low/medium/high）和 status 字段。

只返回如下结构的 JSON 对象（不要使用 markdown，不要附加说明）：
{"test_points": [{"test_point_id": "TP-001", "title": "...", "description": "...", "business_type": "{{.BusinessType}}", "priority": "medium", "status": "draft"}]}`
}

// GetDefaultTestCasesTemplate returns the default template for test case generation.
// Fields: .Requirement, .Count, .BusinessType
func GetDefaultTestCasesTemplate() string {
	return `你是一名资深测试工程师。请根据以下需求或测试点，编写 {{.Count}} 条测试用例。
业务类型：{{.BusinessType}}

输入：
{{.Requirement}}

每条测试用例必须包含 id、name、description、preconditions（字符串数组）、steps、expected_result（字符串数组）、priority（low/medium/high）、module、functional_module、functional_domain 和 remarks 字段。
steps 为对象数组，每个对象包含 step_number（从 1 开始递增且不重复）、action 和 expected。

只返回如下结构的 JSON 对象（不要使用 markdown，不要附加说明）：
{"test_cases": [{"id": "TC-001", "name": "...", "description": "...", "preconditions": ["..."], "steps": [{"step_number": 1, "action": "...", "expected": "..."}], "expected_result": ["..."], "priority": "medium", "module": "", "functional_module": "", "functional_domain": "", "remarks": ""}]}`
}

// GetDefaultSystemPrompt returns the system prompt shared by both generation requests
func GetDefaultSystemPrompt() string {
	return `You are a meticulous QA engineer. Respond with a single valid JSON object and nothing else: no markdown fences, no commentary, no trailing commas.`
}
