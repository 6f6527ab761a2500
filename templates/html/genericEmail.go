package templates

import (
	"fmt"
	"html"
	"strings"
)

// RenderGenericEmail generates branded HTML for a generic email.
// The subject is displayed in the header banner, and bodyContent is plain text
// that gets HTML-escaped and has newlines converted to <br> tags.
func RenderGenericEmail(subject, bodyContent string) string {
	// HTML-escape the body to prevent injection, then convert newlines to <br>
	escaped := html.EscapeString(bodyContent)
	htmlBody := strings.ReplaceAll(escaped, "\n", "<br>")

	// HTML-escape the subject for safe display in the header
	safeSubject := html.EscapeString(subject)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f7f4; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #34d399 0%%, #059669 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(0,0,0,0.1); }
    .footer a { color: #059669; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>CleanStreak &middot; together we keep it clean</p>
      <p><a href="https://www.cleanstreak.app">cleanstreak.app</a></p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, htmlBody)
}

// RenderWrapUpEmail generates the HTML summary sent to a mission or challenge
// owner once it ends
func RenderWrapUpEmail(ownerName, kind, entityName string, totalPieces int64, memberCount int) string {
	safeOwner := html.EscapeString(ownerName)
	safeName := html.EscapeString(entityName)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Your %s has wrapped up</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f7f4; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #34d399 0%%, #059669 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .stat-box { background: rgba(5, 150, 105, 0.08); border: 1px solid rgba(5, 150, 105, 0.3); border-radius: 12px; padding: 20px; margin: 20px 0; text-align: center; }
    .stat-box .number { color: #059669; font-size: 36px; font-weight: 700; }
    .stat-box .label { color: #6b7280; font-size: 13px; text-transform: uppercase; letter-spacing: 1px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(0,0,0,0.1); }
    .footer a { color: #059669; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>&#127881; %s wrapped up!</h1>
    </div>
    <div class="content">
      <h2>Hi %s,</h2>
      <p>Your %s <strong>%s</strong> has reached its end date. Here is what your crew pulled off together:</p>
      <div class="stat-box">
        <div class="number">%d</div>
        <div class="label">pieces of litter collected</div>
      </div>
      <div class="stat-box">
        <div class="number">%d</div>
        <div class="label">people pitched in</div>
      </div>
      <p>Thanks for organizing a cleanup. Every piece counts.</p>
    </div>
    <div class="footer">
      <p>CleanStreak &middot; together we keep it clean</p>
      <p><a href="https://www.cleanstreak.app">cleanstreak.app</a></p>
    </div>
  </div>
</body>
</html>`, safeName, safeName, safeOwner, kind, safeName, totalPieces, memberCount)
}
