package disclosure

const disclosureTemplate = `Patent Disclosure Template
==================================================

[Basic information]
--------------------------------------------------
Title: [concise, names the technical feature]
Patent type: [invention / utility_model / design]
Applicant: [company or individual name]
Applicant address: [full postal address]
Inventors: [separate multiple inventors with commas]
Contact email: [used for follow-up]

[Technical content]
--------------------------------------------------

1. Technical field
[The field the invention belongs to, e.g. artificial intelligence, mechanical engineering, telecommunications]

2. Background art
[The state of the prior art and its shortcomings]
1. Existing solutions...
2. Problems with them...
3. Technical limitations...

3. Technical problems to be solved
[The specific technical problems the invention solves]

4. Technical solution
4.1 Overview:
[The overall technical idea]

4.2 Key steps (separate with semicolons):
Step 1: ...
Step 2: ...
Step 3: ...

4.3 Innovation points (separate with semicolons):
Innovation 1: ...
Innovation 2: ...
Innovation 3: ...

5. Beneficial effects (separate with semicolons)
[Effects compared with the prior art]
1. ...
2. ...
3. ...

6. Embodiments
[One to three concrete embodiments]

Embodiment 1:
...

7. Description of drawings
[Describe each figure, if any]
Figure 1: ...
Figure 2: ...

[Guidance]
--------------------------------------------------
- Title: at least 5 characters, short and precise
- Technical field: at least 10 characters, specific rather than broad
- Background art: at least 50 characters, analyse the prior art in detail
- Technical solution: the core of the disclosure, describe it fully
- Beneficial effects: concrete and measurable
- Embodiments: concrete and reproducible examples

[Choosing a patent type]
--------------------------------------------------
Invention patent:
   - protects methods, products and processes
   - 20 year term
   - substantive examination required

Utility model:
   - protects product structure and shape only
   - 10 year term
   - no substantive examination
   - figures are mandatory

Design patent:
   - protects product appearance
   - 15 year term
   - drawings or photographs are mandatory`

// Template returns the authoring template for a new disclosure.
func Template() string {
	return disclosureTemplate
}
