package mailer

import "html/template"

var contactTemplate = template.Must(template.New("contact").Parse(`<html lang="fi">
<head>
    <meta charset="UTF-8">
    <title>New Client Request</title>
</head>
<body>
<h2>New Client Request</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Last Name:</strong> {{.LastName}}</p>
<p><strong>City:</strong> {{.City}}</p>
<p><strong>Postal Code:</strong> {{.PostalCode}}</p>
<p><strong>Street:</strong> {{.Street}}</p>
<p><strong>Phone:</strong> {{.Telephone}}</p>
<p><strong>Message:</strong> {{.Message}}</p>
</body>
</html>
`))

var calculatorTemplate = template.Must(template.New("calculator").Parse(`<h2>New Client Request From Calculator</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Phone:</strong> {{.Phone}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Payment type:</strong> {{.Payment}}</p>
<p><strong>Message:</strong> {{.Message}}</p>
<p><strong>Ceiling type:</strong> {{.CeilingTitle}}</p>
<h3>Textures:</h3>
{{range .TextureList}}<p>{{.}}</p>
{{end}}<h3>Order Details:</h3>
{{range .Lines}}<p>{{.Title}} {{.Value}} {{.Unit}} | <strong>{{.Total}} €</strong></p>
{{end}}<br /><br />
<h2><strong>Total Order Sum:</strong> {{.TotalOrderSum}} €</h2>
`))
