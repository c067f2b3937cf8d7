package checkout

import (
	"html/template"
	"io"

	"ravepay/internal/rave"
)

const handoffPage = `<html>
<body>
<center>Processing...</center>
<script type="text/javascript" src="{{.ScriptURL}}"></script>
<script>
document.addEventListener("DOMContentLoaded", function(event) {
  var data = {{.Payload}};
  getpaidSetup(data);
});
</script>
</body>
</html>
`

// Renderer writes the page that hands a signed payload to the inline checkout.
type Renderer struct {
	tmpl      *template.Template
	scriptURL string
}

func NewRenderer(scriptURL string) *Renderer {
	return &Renderer{
		tmpl:      template.Must(template.New("handoff").Parse(handoffPage)),
		scriptURL: scriptURL,
	}
}

// Render embeds h as a JSON literal; html/template escapes it for the script context.
func (r *Renderer) Render(w io.Writer, h *rave.Handoff) error {
	return r.tmpl.Execute(w, struct {
		ScriptURL string
		Payload   *rave.Handoff
	}{
		ScriptURL: r.scriptURL,
		Payload:   h,
	})
}
