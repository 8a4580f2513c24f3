package extract

import (
	"regexp"
	"strings"

	"github.com/hpungsan/lsearch/internal/command"
)

// categoryRule pairs a category with the keyword pattern that selects it.
type categoryRule struct {
	category command.Category
	pattern  *regexp.Regexp
}

// categoryRules is evaluated in order; the first match wins.
// Security is tested before files so that "password file" lands in security.
var categoryRules = []categoryRule{
	{command.Networking, regexp.MustCompile(
		`network|ssh|http|port|ip |tcp|udp|dns|ping|curl|wget|netcat|traceroute|` +
			`\bred\b|tráfico|conexi|protocolo|servidor|cliente|interfaz`)},
	{command.Security, regexp.MustCompile(
		`security|password|encrypt|scan|hack|exploit|vuln|pentest|crack|firewall|` +
			`nmap|metasploit|hydra|aircrack|wireshark|forensic|` +
			`seguridad|contraseña|bloquea|ataque|force|fuerza|bruta|fuzz|` +
			`inyecci|injection|penetración|auditoría|malware|virus|rootkit|troyano|` +
			`backdoor|sniff|spoof|mitm`)},
	{command.Files, regexp.MustCompile(
		`file|directory|folder|copy|move|delete|find|list|ls |cd |mkdir|rm |cp |mv |touch|ln |` +
			`archivo|directorio|carpeta|copia|mueve|borra|elimina|lista`)},
	{command.Process, regexp.MustCompile(
		`process|pid|kill|cpu|memory|top|htop|ps |free |uptime|` +
			`proceso|memoria|ejecu|actividad|monitor`)},
	{command.Text, regexp.MustCompile(
		`text|string|pattern|grep|sed|awk|regex|cat |less|more|head|tail|cut|sort|uniq|` +
			`texto|patrón|cadena|línea|reemplaza|busca|filtra|edita|vi |nano`)},
	{command.Permissions, regexp.MustCompile(
		`permission|chmod|chown|access|owner|sudo|permiso|acceso|propietario`)},
	{command.Disk, regexp.MustCompile(
		`disk|storage|mount|partition|df |du |` +
			`disco|almacenamiento|espacio|parti|format|monta|sistema de ficheros`)},
	{command.Users, regexp.MustCompile(
		`user|account|group|login|passwd|useradd|usuario|cuenta|grupo|sesión|root`)},
	{command.System, regexp.MustCompile(`package|apt|yum|dnf|snap|install`)},
}

// Classify maps free text to a category using ordered keyword rules.
// Text matching no rule is classified as command.DefaultCategory.
func Classify(text string) command.Category {
	l := strings.ToLower(text)
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(l) {
			return rule.category
		}
	}
	return command.DefaultCategory
}
