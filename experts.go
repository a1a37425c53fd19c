package studytutor

import openai "github.com/sashabaranov/go-openai"

// Standard capability names.
const (
	CapabilityOSExpert         = "os_expert"
	CapabilityNetworkingExpert = "networking_expert"
	CapabilityDatabaseExpert   = "database_expert"
	CapabilityIntentClassifier = "intent_classifier"
	CapabilityQuizWriter       = "quiz_writer"
)

const osExpertInstruction = "You are a senior Operating Systems domain expert. " +
	"Answer with clear, rigorous explanations grounded in OS theory and practice. " +
	"When helpful, reference classical OS concepts (processes, threads, CPU scheduling, " +
	"synchronization, deadlocks, memory management, paging, virtual memory, filesystems, " +
	"I/O, protection and security) and compare algorithms and their trade-offs. " +
	"If the question is ambiguous, state assumptions. If you are uncertain, say so."

const networkingExpertInstruction = "You are a senior Computer Networks domain expert. " +
	"Answer with clear, rigorous explanations grounded in networking theory and practice. " +
	"When helpful, reference the OSI and TCP/IP models, routing algorithms, congestion " +
	"control, switching, subnetting, DNS, DHCP, firewalls, VPNs, and security protocols, " +
	"and compare protocols and their trade-offs. " +
	"If the question is ambiguous, state assumptions. If you are uncertain, say so."

const databaseExpertInstruction = "You are a senior Database domain expert. " +
	"Answer with clear, rigorous explanations grounded in database theory and practice. " +
	"When helpful, reference relational and non-relational models, normalization, " +
	"indexing, ACID properties, transactions and concurrency control, query optimization, " +
	"and the CAP theorem, and compare structures and their trade-offs. " +
	"If the question is ambiguous, state assumptions. If you are uncertain, say so."

var expertKeywords = map[string][]string{
	CapabilityOSExpert: {
		"operating system", " os ", "process", "thread", "scheduling", "deadlock",
		"paging", "segmentation", "virtual memory", "filesystem", "file system",
		"kernel", "mutex", "semaphore", "interrupt",
	},
	CapabilityNetworkingExpert: {
		"network", "tcp", "udp", "ip ", "osi", "routing", "dns", "dhcp", "smtp",
		"http", "subnet", "firewall", "vpn", "socket", "congestion", "packet",
		"protocol",
	},
	CapabilityDatabaseExpert: {
		"database", "sql", "index", "normalization", "transaction", "acid",
		"query", "nosql", "join", "schema", "b-tree", "isolation level",
	},
}

const quizWriterInstruction = "You write multiple choice quizzes for students. " +
	"Follow the output contract in each request exactly and respond with only the " +
	"requested JSON, nothing else."

const classifierCapabilityInstruction = "You analyze student messages for an " +
	"educational assistant. You never answer the message itself. Respond with only " +
	"the JSON requested, nothing else."

// NewQuizWriter builds the generation capability used by the quiz maker.
func NewQuizWriter(client *openai.Client, model string, retry RetryPolicy) Capability {
	return NewExpertCapability(client, model, CapabilityQuizWriter, quizWriterInstruction, nil, retry)
}

// NewClassifierCapability builds the capability backing LLM intent
// classification.
func NewClassifierCapability(client *openai.Client, model string, retry RetryPolicy) Capability {
	return NewExpertCapability(client, model, CapabilityIntentClassifier, classifierCapabilityInstruction, nil, retry)
}

// DomainExperts builds the standard expert set backed by a single client.
func DomainExperts(client *openai.Client, model string, retry RetryPolicy) []Capability {
	return []Capability{
		NewExpertCapability(client, model, CapabilityOSExpert, osExpertInstruction,
			expertKeywords[CapabilityOSExpert], retry),
		NewExpertCapability(client, model, CapabilityNetworkingExpert, networkingExpertInstruction,
			expertKeywords[CapabilityNetworkingExpert], retry),
		NewExpertCapability(client, model, CapabilityDatabaseExpert, databaseExpertInstruction,
			expertKeywords[CapabilityDatabaseExpert], retry),
	}
}
