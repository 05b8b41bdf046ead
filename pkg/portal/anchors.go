package portal

import "github.com/entrhq/winona/pkg/browser"

// DefaultLoginURL is the Magis5 admin login page.
const DefaultLoginURL = "https://app.magis5.com.br/v2/admin/autenticacao/login.php"

// TokenFieldID is the id of the hidden challenge response field on the login form.
const TokenFieldID = "g-recaptcha-response"

// ReportDateLayout is the date format the report form accepts.
const ReportDateLayout = "02/01/2006"

// Login page anchors
var (
	UsernameField = browser.Anchor{Name: "username field", Selector: `//*[@id="login"]`, State: browser.StateAttached}
	PasswordField = browser.Anchor{Name: "password field", Selector: `//*[@id="password"]`, State: browser.StateVisible}
	TokenField    = browser.Anchor{Name: "challenge token field", Selector: `//*[@id="` + TokenFieldID + `"]`, State: browser.StateAttached}
	LoginSubmit   = browser.Anchor{Name: "login submit", Selector: `//*[@id="kt_login_signin_submit"]`, State: browser.StateClickable}

	// LoggedInMarker only renders for an authenticated user
	LoggedInMarker = browser.Anchor{Name: "user menu toggle", Selector: `//*[@id="kt_quick_user_toggle"]`, State: browser.StateAttached}
)

// Report page anchors
var (
	FinanceMenu       = browser.Anchor{Name: "finance menu", Selector: `//*[@id="menu-financeiro"]/span[1]`, State: browser.StateClickable}
	ReportSubmenu     = browser.Anchor{Name: "report by product", Selector: `//*[@id="submenu-financeiro-relatorioporproduto"]/span[2]`, State: browser.StateClickable}
	DateField         = browser.Anchor{Name: "report date field", Selector: `//*[@id="data1"]`, State: browser.StateVisible}
	ReportSubmit      = browser.Anchor{Name: "report submit", Selector: `//*[@id="submit"]`, State: browser.StateClickable}
	ExportOptions     = browser.Anchor{Name: "export options", Selector: `//*[@id="divAccordionButtons"]/div/div[2]/div[2]/a`, State: browser.StateClickable}
	ExcelExportOption = browser.Anchor{Name: "excel export", Selector: `//*[@id="exportTableXLS"]/li/span/span`, State: browser.StateClickable}
)

// injectTokenScript writes the token into the hidden response field and shows it.
const injectTokenScript = `([id, token]) => {
	const el = document.getElementById(id);
	if (!el) {
		return false;
	}
	el.innerHTML = token;
	el.value = token;
	el.style.display = 'block';
	return true;
}`
