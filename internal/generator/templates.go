package generator

import "fmt"

// content renders a subject and plain-text body for the given email type.
// Every variant is rendered, then one subject and one body are picked.
func (g *Generator) content(emailType string) (string, string) {
	f := g.faker

	var subjects, bodies []string
	switch emailType {
	case TypeCustomerInquiry:
		subjects = []string{
			fmt.Sprintf("Question about %s Product", title(f.Word())),
			fmt.Sprintf("Need help with %s", f.Word()),
			"Product Information Request",
			fmt.Sprintf("Inquiry about %s services", f.Company()),
		}
		bodies = []string{
			fmt.Sprintf("Hello,\n\nI'm interested in learning more about your %s services. Could you please provide more details about pricing and availability?\n\nBest regards,\n%s",
				f.Word(), f.Name()),
			fmt.Sprintf("Hi there,\n\nI saw your %s product online and have a few questions. When would be a good time to discuss this further?\n\nThanks,\n%s",
				f.Word(), f.Name()),
		}

	case TypeSupportTicket:
		subjects = []string{
			fmt.Sprintf("Issue with %s - Ticket #%s", title(f.Word()), f.Numerify("######")),
			"Technical Support Needed",
			fmt.Sprintf("Problem accessing %s dashboard", f.Word()),
			"Account access issues",
		}
		bodies = []string{
			fmt.Sprintf("Hi Support Team,\n\nI'm experiencing an issue with %s functionality. The error message shows: '%s'\n\nSteps to reproduce:\n1. %s\n2. %s\n\nPlease advise.\n\n%s",
				f.Word(), g.sentence(6), g.sentence(6), g.sentence(6), f.Name()),
			fmt.Sprintf("Hello,\n\nI cannot log into my account. I've tried resetting my password but still having issues. My account email is %s.\n\nPlease help.\n\n%s",
				f.Email(), f.Name()),
		}

	case TypeSalesFollowUp:
		subjects = []string{
			fmt.Sprintf("Following up on our %s conversation", f.MonthString()),
			"Next steps for your project",
			fmt.Sprintf("Proposal for %s", f.Company()),
			"Quick follow-up question",
		}
		bodies = []string{
			fmt.Sprintf("Hi %s,\n\nIt was great meeting with you last week. As discussed, I'm attaching the proposal for your %s project.\n\nLet me know if you have any questions!\n\nBest,\n%s",
				f.FirstName(), f.Word(), f.Name()),
			fmt.Sprintf("Hello %s,\n\nJust checking in to see if you had a chance to review the information I sent over. I'm here if you need any clarification.\n\nThanks,\n%s",
				f.FirstName(), f.Name()),
		}

	case TypeInternal:
		subjects = []string{
			fmt.Sprintf("Team Meeting - %s", g.within(1).Format("January 02")),
			fmt.Sprintf("Update on %s Project", title(f.Word())),
			"Weekly Status Report",
			fmt.Sprintf("%s Process Documentation", title(f.Word())),
		}
		bodies = []string{
			fmt.Sprintf("Team,\n\nPlease find this week's status update below:\n\n• %s\n• %s\n• %s\n\nLet me know if you have questions.\n\n%s",
				g.sentence(8), g.sentence(8), g.sentence(8), f.Name()),
			fmt.Sprintf("Hi everyone,\n\nThe %s project is progressing well. Current status:\n- Completed: %s\n- In Progress: %s\n- Next: %s\n\nThanks,\n%s",
				f.Word(), g.sentence(6), g.sentence(6), g.sentence(6), f.Name()),
		}

	default:
		subjects = []string{
			fmt.Sprintf("%s Newsletter - %s", f.MonthString(), f.Company()),
			fmt.Sprintf("Weekly Update from %s", f.Company()),
			"New Product Announcements",
			fmt.Sprintf("%s Tips and Best Practices", title(f.Word())),
		}
		bodies = []string{
			fmt.Sprintf("Dear Subscriber,\n\nWelcome to our %s newsletter! This month we're featuring:\n\n• %s\n• %s\n• %s\n\nRead more at %s\n\nBest regards,\nThe %s Team",
				f.MonthString(), g.sentence(8), g.sentence(8), g.sentence(8), f.URL(), f.Company()),
			fmt.Sprintf("Hello,\n\nHere are this week's highlights:\n\n1. %s\n2. %s\n3. %s\n\nVisit our blog for more details: %s\n\nCheers,\n%s",
				g.sentence(8), g.sentence(8), g.sentence(8), f.URL(), f.Company()),
		}
	}

	return f.RandomString(subjects), f.RandomString(bodies)
}
